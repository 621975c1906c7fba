package main

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ProductURL       string `yaml:"product_url"`
	CartURL          string `yaml:"cart_url"`
	LoginSuccessPart string `yaml:"login_success_url_part"`

	BrowserProfilePath string `yaml:"browser_profile_path"`
	UserAgent          string `yaml:"user_agent"`
	ViewportWidth      int    `yaml:"viewport_width"`
	ViewportHeight     int    `yaml:"viewport_height"`
	Headless           bool   `yaml:"headless"`
	KeepBrowserOpen    bool   `yaml:"keep_browser_open"`

	PageLoadTimeout  int `yaml:"page_load_timeout"`
	ConditionTimeout int `yaml:"condition_timeout"`
	ModalTimeout     int `yaml:"modal_timeout"`
	LoginTimeout     int `yaml:"login_timeout"`
	ConsentTimeout   int `yaml:"consent_timeout"`
	PollIntervalMs   int `yaml:"poll_interval_ms"`

	ClickRetries      int `yaml:"click_retries"`
	ClickRetryDelayMs int `yaml:"click_retry_delay_ms"`
	ClickTimeoutMs    int `yaml:"click_timeout_ms"`
	RefreshAttempts   int `yaml:"refresh_attempts"`
	RefreshSettle     int `yaml:"refresh_settle_seconds"`
	KeyDelayMs        int `yaml:"key_delay_ms"`
	StepPauseMs       int `yaml:"step_pause_ms"`

	// StartAt delays the run until a sale opens; see ParseStartTime.
	StartAt     string   `yaml:"start_at"`
	TimeServers []string `yaml:"time_servers"`

	EnvFile    string `yaml:"env_file"`
	LogFile    string `yaml:"log_file"`
	LogLevel   string `yaml:"log_level"`
	LogMaxSize int    `yaml:"log_max_size_mb"`
	DebugMode  bool   `yaml:"debug_mode"`

	Selectors SelectorConfig `yaml:"selectors"`
}

type SelectorConfig struct {
	AddToCartButton   Locator `yaml:"add_to_cart_button"`
	CartModal         Locator `yaml:"cart_modal"`
	ModalCheckout     Locator `yaml:"modal_checkout_button"`
	ProceedToCheckout Locator `yaml:"proceed_to_checkout_button"`
	ContinueButton    Locator `yaml:"continue_button"`
	CookieConsent     Locator `yaml:"cookie_consent_button"`

	Username    Locator `yaml:"username"`
	Password    Locator `yaml:"password"`
	LoginSubmit Locator `yaml:"login_submit"`

	Telephone Locator `yaml:"telephone"`
	Postcode  Locator `yaml:"postcode"`
	Street1   Locator `yaml:"street1"`
	Street2   Locator `yaml:"street2"`

	PaymentFrame Locator `yaml:"payment_frame"`
	CardNumber   Locator `yaml:"card_number"`
	CardExpiry   Locator `yaml:"card_expiry"`
	CardCVC      Locator `yaml:"card_cvc"`
}

func DefaultConfig() *Config {
	userDataDir := getUserDataDir()

	return &Config{
		ProductURL:         "https://www.casio.com/sg/watches/gshock/product.DW-5610UU-3/",
		CartURL:            "https://www.casio.com/sg/checkout/cart",
		LoginSuccessPart:   "casio.com/sg",
		BrowserProfilePath: filepath.Join(userDataDir, "browser-profile"),
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:      1920,
		ViewportHeight:     1080,
		Headless:           false,
		KeepBrowserOpen:    true,
		PageLoadTimeout:    30,
		ConditionTimeout:   10,
		ModalTimeout:       30,
		LoginTimeout:       20,
		ConsentTimeout:     5,
		PollIntervalMs:     250,
		ClickRetries:       3,
		ClickRetryDelayMs:  1000,
		ClickTimeoutMs:     2000,
		RefreshAttempts:    3,
		RefreshSettle:      5,
		KeyDelayMs:         60,
		StepPauseMs:        1000,
		TimeServers: []string{
			"https://www.google.com",
			"https://www.cloudflare.com",
			"https://www.amazon.com",
		},
		EnvFile:    ".env",
		LogFile:    "checkout_automation.log",
		LogLevel:   "info",
		LogMaxSize: 10,
		Selectors: SelectorConfig{
			AddToCartButton:   CSS("div.p-product__btn-addcart a"),
			CartModal:         Class("cmp-modal-content"),
			ModalCheckout:     CSS("div.cmp-modal-content button.cmp-button:not(.cmp-button-content__close)"),
			ProceedToCheckout: CSS("button.btn.checkout"),
			ContinueButton:    CSS("button[data-role='opc-continue']"),
			CookieConsent:     ID("CybotCookiebotDialogBodyLevelButtonLevelOptinAllowallSelection"),
			Username:          ID("username"),
			Password:          ID("password"),
			LoginSubmit:       ID("idpwbtn"),
			Telephone:         Name("telephone"),
			Postcode:          Name("postcode"),
			Street1:           Name("street[0]"),
			Street2:           Name("street[1]"),
			PaymentFrame:      CSS("iframe[title='Secure payment input frame']"),
			CardNumber:        ID("Field-numberInput"),
			CardExpiry:        ID("Field-expiryInput"),
			CardCVC:           ID("Field-cvcInput"),
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.BrowserProfilePath != "" {
		if err := os.MkdirAll(config.BrowserProfilePath, 0755); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func milliseconds(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c *Config) clickPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: c.ClickRetries, Delay: milliseconds(c.ClickRetryDelayMs)}
}

func (c *Config) fallbackPolicy() FallbackPolicy {
	return FallbackPolicy{
		Attempts: c.RefreshAttempts,
		PageLoad: seconds(c.PageLoadTimeout),
		Settle:   seconds(c.RefreshSettle),
		Timeout:  seconds(c.ConditionTimeout),
	}
}

func getUserDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./casiocart-data"
	}
	return filepath.Join(home, ".casiocart")
}
