package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	StepAddToCart = "add-to-cart"
	StepLogin     = "login"
	StepAddress   = "address-details"
	StepPayment   = "payment-details"
)

// Checkout holds the four store stages. It stops once the card fields are
// filled; placing the order is left to the operator.
type Checkout struct {
	config *Config
	creds  *Credentials
	in     *Interactor
	conds  *ConditionEngine
	log    *zap.Logger
}

func NewCheckout(config *Config, creds *Credentials, in *Interactor, conds *ConditionEngine, log *zap.Logger) *Checkout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checkout{config: config, creds: creds, in: in, conds: conds, log: log}
}

// newCheckoutFromConfig wires the resilience engine from config values.
func newCheckoutFromConfig(config *Config, creds *Credentials, sleep SleepFunc, log *zap.Logger) *Checkout {
	conds := NewConditionEngine(milliseconds(config.PollIntervalMs), log)
	typist := NewInputSynthesizer(FixedDelay(milliseconds(config.KeyDelayMs)), sleep)
	in := NewInteractor(conds, typist, config.clickPolicy(), seconds(config.ConditionTimeout), sleep, log)
	return NewCheckout(config, creds, in, conds, log)
}

// Steps returns the stages in the only order they may run.
func (c *Checkout) Steps() []Step {
	return []Step{
		NewStep(StepAddToCart, c.addToCart),
		NewStep(StepLogin, c.login),
		NewStep(StepAddress, c.fillAddress),
		NewStep(StepPayment, c.fillPayment),
	}
}

func (c *Checkout) addToCart(ctx context.Context, s *Session) error {
	sel := c.config.Selectors

	c.log.Info("navigating to product page", zap.String("url", c.config.ProductURL))
	navCtx, cancel := context.WithTimeout(ctx, seconds(c.config.PageLoadTimeout))
	err := s.Navigate(navCtx, c.config.ProductURL)
	cancel()
	if err != nil {
		return fmt.Errorf("opening product page: %w", err)
	}

	c.log.Info("adding to cart")
	if err := c.in.WaitAndClick(ctx, s, sel.AddToCartButton, 0); err != nil {
		if !errors.Is(err, ErrConditionTimeout) {
			return err
		}
		c.log.Info("add to cart button not found, attempting refresh")
		if _, err := c.in.RefreshUntil(ctx, s, Clickable(sel.AddToCartButton), c.config.fallbackPolicy()); err != nil {
			return fmt.Errorf("add to cart button never rendered: %w", err)
		}
		if err := c.in.WaitAndClick(ctx, s, sel.AddToCartButton, 0); err != nil {
			return err
		}
	}

	c.log.Info("waiting for cart modal")
	if _, err := c.conds.Await(ctx, s, Present(sel.CartModal), seconds(c.config.ModalTimeout)); err != nil {
		return err
	}

	c.log.Info("opening cart from modal")
	if err := c.in.WaitAndClick(ctx, s, sel.ModalCheckout, 0); err != nil {
		return err
	}

	if _, err := c.conds.Await(ctx, s, URLIs(c.config.CartURL), seconds(c.config.ConditionTimeout)); err != nil {
		return err
	}

	c.log.Info("proceeding to checkout")
	return c.in.WaitAndClick(ctx, s, sel.ProceedToCheckout, seconds(c.config.ModalTimeout))
}

func (c *Checkout) login(ctx context.Context, s *Session) error {
	sel := c.config.Selectors

	c.log.Info("proceeding to login")
	if err := c.in.WaitAndClick(ctx, s, sel.ContinueButton, 0); err != nil {
		return err
	}

	c.dismissConsent(ctx, s)

	fields := []FormFieldBinding{
		{Label: "username", Locator: sel.Username, Value: c.creds.Username, Verify: true},
		{Label: "password", Locator: sel.Password, Value: c.creds.Password},
	}
	if err := c.in.FillAll(ctx, s, fields); err != nil {
		return err
	}
	if err := c.in.WaitAndClick(ctx, s, sel.LoginSubmit, 0); err != nil {
		return err
	}

	if _, err := c.conds.Await(ctx, s, URLHas(c.config.LoginSuccessPart), seconds(c.config.LoginTimeout)); err != nil {
		return fmt.Errorf("login did not complete: %w", err)
	}
	c.log.Info("login successful")
	return nil
}

// dismissConsent clicks the cookie banner if it shows up quickly. Its
// absence is normal.
func (c *Checkout) dismissConsent(ctx context.Context, s *Session) {
	timeout := seconds(c.config.ConsentTimeout)
	if timeout <= 0 {
		timeout = time.Second
	}
	err := c.in.WaitAndClick(ctx, s, c.config.Selectors.CookieConsent, timeout)
	if err != nil {
		c.log.Info("no cookie consent needed", zap.String("kind", Kind(err)))
		return
	}
	c.log.Info("cookie consent accepted")
}

func (c *Checkout) fillAddress(ctx context.Context, s *Session) error {
	sel := c.config.Selectors

	c.log.Info("filling checkout details")
	fields := []FormFieldBinding{
		{Label: "telephone", Locator: sel.Telephone, Value: c.creds.Phone, Verify: true},
		{Label: "postcode", Locator: sel.Postcode, Value: c.creds.Postcode, Verify: true},
		{Label: "street1", Locator: sel.Street1, Value: c.creds.Street1, Verify: true},
		{Label: "street2", Locator: sel.Street2, Value: c.creds.Street2, Verify: true},
	}
	if err := c.in.FillAll(ctx, s, fields); err != nil {
		return err
	}

	return c.in.WaitAndClick(ctx, s, sel.ContinueButton, 0)
}

func (c *Checkout) fillPayment(ctx context.Context, s *Session) error {
	sel := c.config.Selectors

	c.log.Info("filling payment details")
	if _, err := c.conds.Await(ctx, s, Present(sel.PaymentFrame), seconds(c.config.ModalTimeout)); err != nil {
		return fmt.Errorf("payment form: %w", err)
	}

	// The widget re-formats number and expiry as it goes, so only the CVC
	// can be compared verbatim.
	fields := []FormFieldBinding{
		{Label: "card number", Locator: sel.CardNumber, Value: c.creds.CardNumber, Restricted: true},
		{Label: "card expiry", Locator: sel.CardExpiry, Value: c.creds.CardExpiry, Restricted: true},
		{Label: "card cvc", Locator: sel.CardCVC, Value: c.creds.CardCVC, Restricted: true, Verify: true},
	}
	return s.WithFrame(ctx, sel.PaymentFrame, func(ctx context.Context) error {
		return c.in.FillAll(ctx, s, fields)
	})
}
