package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredentials() *Credentials {
	return &Credentials{
		Username:   "buyer@example.com",
		Password:   "s3cret",
		Phone:      "91234567",
		Postcode:   "238859",
		Street1:    "1 Orchard Road",
		Street2:    "#01-01",
		CardNumber: "4242424242424242",
		CardExpiry: "1230",
		CardCVC:    "123",
	}
}

// testConfig keeps the store defaults but makes every wait a single check.
func testConfig() *Config {
	config := DefaultConfig()
	config.ProductURL = "https://www.casio.com/sg/watches/gshock/product.GA-2100/"
	config.ConditionTimeout = 0
	config.ModalTimeout = 0
	config.LoginTimeout = 0
	config.PollIntervalMs = 1
	config.ClickRetries = 3
	config.ClickRetryDelayMs = 500
	config.RefreshAttempts = 3
	config.RefreshSettle = 5
	config.KeyDelayMs = 0
	config.StepPauseMs = 0
	return config
}

type store struct {
	*fakeDriver
	addToCart *fakeElement
	fields    map[Locator]*fakeElement
	card      map[Locator]*fakeElement
}

// newStore renders a product page whose buttons drive the shop the way the
// real storefront does: each click reveals the next page's controls.
func newStore(config *Config) *store {
	sel := config.Selectors
	d := newFakeDriver()
	st := &store{
		fakeDriver: d,
		fields: map[Locator]*fakeElement{
			sel.Username:  {},
			sel.Password:  {},
			sel.Telephone: {},
			sel.Postcode:  {},
			sel.Street1:   {},
			sel.Street2:   {},
		},
		card: map[Locator]*fakeElement{
			sel.CardNumber: {},
			sel.CardExpiry: {},
			sel.CardCVC:    {},
		},
	}

	submit := &fakeElement{onClick: func() {
		d.url = "https://www.casio.com/sg/checkout/#shipping"
		for loc, el := range st.fields {
			d.add(loc, el)
		}
		d.addFrame(sel.PaymentFrame, st.card)
	}}
	proceed := &fakeElement{onClick: func() {
		d.url = "https://secure.casio.com/login"
		d.add(sel.ContinueButton, &fakeElement{})
		d.add(sel.CookieConsent, &fakeElement{})
		d.add(sel.Username, st.fields[sel.Username])
		d.add(sel.Password, st.fields[sel.Password])
		d.add(sel.LoginSubmit, submit)
	}}
	modalCheckout := &fakeElement{onClick: func() {
		d.url = config.CartURL + "/"
		d.add(sel.ProceedToCheckout, proceed)
	}}
	st.addToCart = &fakeElement{onClick: func() {
		d.add(sel.CartModal, &fakeElement{})
		d.add(sel.ModalCheckout, modalCheckout)
	}}

	d.onNav = func(url string) {
		if url == config.ProductURL {
			d.add(sel.AddToCartButton, st.addToCart)
		}
	}
	return st
}

func runCheckout(t *testing.T, config *Config, d Driver) (PipelineResult, *Session, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	s := testSession(d)
	checkout := newCheckoutFromConfig(config, testCredentials(), rec.sleep, nil)
	result := NewPipeline(nil, checkout.Steps()).Run(context.Background(), s)
	return result, s, rec
}

func TestCheckoutHappyPath(t *testing.T) {
	config := testConfig()
	st := newStore(config)

	result, s, _ := runCheckout(t, config, st)

	require.NoError(t, result.Err)
	assert.Equal(t, []string{StepAddToCart, StepLogin, StepAddress, StepPayment}, result.Completed)

	creds := testCredentials()
	sel := config.Selectors
	assert.Equal(t, creds.Username, st.fields[sel.Username].value)
	assert.Equal(t, creds.Password, st.fields[sel.Password].value)
	assert.Equal(t, creds.Postcode, st.fields[sel.Postcode].value)
	assert.Equal(t, creds.Street2, st.fields[sel.Street2].value)
	assert.Equal(t, creds.CardNumber, st.card[sel.CardNumber].value)
	assert.Equal(t, creds.CardExpiry, st.card[sel.CardExpiry].value)
	assert.Equal(t, creds.CardCVC, st.card[sel.CardCVC].value)

	for loc, el := range st.card {
		assert.Zero(t, el.setCalls, "%s must be typed, not assigned", loc)
		assert.NotEmpty(t, el.events)
	}
	assert.Len(t, st.card[sel.CardCVC].events, 4*len(creds.CardCVC))

	assert.Equal(t, 1, st.addToCart.clicks)
	assert.Zero(t, st.refresh, "no fallback when the page renders")
	assert.Equal(t, "navigate "+config.ProductURL, st.calls[0])
	assert.Equal(t, 1, st.maxDepth)
	assert.Equal(t, 0, s.Depth())
	assert.Empty(t, st.path)
}

func TestCheckoutRefreshFallbackExhausted(t *testing.T) {
	config := testConfig()
	st := newStore(config)
	st.onNav = nil

	result, s, rec := runCheckout(t, config, st)

	assert.Equal(t, StepAddToCart, result.FailedStep)
	assert.ErrorIs(t, result.Err, ErrConditionTimeout)
	assert.Equal(t, config.RefreshAttempts, st.refresh)
	want := []string{"navigate " + config.ProductURL}
	for i := 0; i < config.RefreshAttempts; i++ {
		want = append(want, "refresh")
	}
	assert.Equal(t, want, st.calls)
	assert.Len(t, rec.sleeps, config.RefreshAttempts)
	assert.Equal(t, 0, s.Depth())
}

func TestCheckoutRefreshFallbackRecovers(t *testing.T) {
	config := testConfig()
	st := newStore(config)
	st.onNav = nil
	st.onReload = func() {
		if st.refresh == 2 {
			st.add(config.Selectors.AddToCartButton, st.addToCart)
		}
	}

	result, _, _ := runCheckout(t, config, st)

	require.NoError(t, result.Err)
	assert.Equal(t, 2, st.refresh)
	assert.Equal(t, 1, st.addToCart.clicks)
}

func TestCheckoutRetriesInterceptedAddToCart(t *testing.T) {
	config := testConfig()
	st := newStore(config)
	st.addToCart.intercept = 2

	result, _, rec := runCheckout(t, config, st)

	require.NoError(t, result.Err)
	assert.Equal(t, 3, st.addToCart.clicks)
	require.GreaterOrEqual(t, len(rec.sleeps), 2)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, rec.sleeps[:2])
	assert.Zero(t, st.refresh, "interception never triggers a refresh")
}

func TestCheckoutStopsAtAddressMismatch(t *testing.T) {
	config := testConfig()
	st := newStore(config)
	st.fields[config.Selectors.Postcode].maxLen = 4

	result, _, _ := runCheckout(t, config, st)

	assert.Equal(t, StepAddress, result.FailedStep)
	assert.Equal(t, "value_verification_mismatch", Kind(result.Err))
	assert.Equal(t, []string{StepAddToCart, StepLogin}, result.Completed)
	assert.Zero(t, st.called("enter"), "payment never starts")
}

func TestCheckoutPaymentMismatchLeavesFrame(t *testing.T) {
	config := testConfig()
	st := newStore(config)
	st.card[config.Selectors.CardCVC].maxLen = 2

	result, s, _ := runCheckout(t, config, st)

	assert.Equal(t, StepPayment, result.FailedStep)
	assert.ErrorIs(t, result.Err, ErrValueMismatch)
	assert.Equal(t, 0, s.Depth())
	assert.Empty(t, st.path)
}

func TestCheckoutLoginNeverRedirects(t *testing.T) {
	config := testConfig()
	config.LoginSuccessPart = "casio.com/jp"
	st := newStore(config)

	result, _, _ := runCheckout(t, config, st)

	assert.Equal(t, StepLogin, result.FailedStep)
	assert.Equal(t, "condition_timeout", Kind(result.Err))
}
