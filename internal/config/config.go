package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the crawler.
// Values are read by viper from configs/config.yaml, a .env file and environment variables.
type Config struct {
	Email    string `mapstructure:"LEMONBASE_EMAIL"`
	Password string `mapstructure:"LEMONBASE_PASSWORD"`

	BaseURL         string `mapstructure:"BASE_URL"`
	LoginURL        string `mapstructure:"LOGIN_URL"`
	ReviewsURL      string `mapstructure:"REVIEWS_URL"`
	OneOnOneURL     string `mapstructure:"ONE_ON_ONE_URL"`
	OneOnOneBaseURL string `mapstructure:"ONE_ON_ONE_BASE_URL"`

	WaitTimeout    time.Duration `mapstructure:"WAIT_TIMEOUT"`
	RedirectSettle time.Duration `mapstructure:"REDIRECT_SETTLE"`
	MeetingSettle  time.Duration `mapstructure:"MEETING_SETTLE"`

	ReviewLinksFile  string `mapstructure:"REVIEW_LINKS_FILE"`
	SessionLinksFile string `mapstructure:"SESSION_LINKS_FILE"`
	ReviewsDir       string `mapstructure:"REVIEWS_DIR"`
	SessionsDir      string `mapstructure:"SESSIONS_DIR"`
	LedgerPath       string `mapstructure:"LEDGER_PATH"`

	ChromeBin  string `mapstructure:"CHROME_BIN"`
	Headless   bool   `mapstructure:"HEADLESS"`
	ControlURL string `mapstructure:"CONTROL_URL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `mapstructure:"TELEGRAM_CHAT_ID"`

	Selectors Selectors `mapstructure:"SELECTORS"`
	Markers   Markers   `mapstructure:"MARKERS"`
}

// Selectors are the CSS selectors used against the rendered application.
type Selectors struct {
	LoginEmail        string `mapstructure:"LOGIN_EMAIL"`
	LoginPassword     string `mapstructure:"LOGIN_PASSWORD"`
	ListingRow        string `mapstructure:"LISTING_ROW"`
	SessionRow        string `mapstructure:"SESSION_ROW"`
	RowCell           string `mapstructure:"ROW_CELL"`
	RowCellIndex      int    `mapstructure:"ROW_CELL_INDEX"`
	CellAnchor        string `mapstructure:"CELL_ANCHOR"`
	RowKeyAttr        string `mapstructure:"ROW_KEY_ATTR"`
	NextPage          string `mapstructure:"NEXT_PAGE"`
	NextPageButton    string `mapstructure:"NEXT_PAGE_BUTTON"`
	DisabledAttr      string `mapstructure:"DISABLED_ATTR"`
	ReviewBody        string `mapstructure:"REVIEW_BODY"`
	ReviewHeadline    string `mapstructure:"REVIEW_HEADLINE"`
	MeetingDate       string `mapstructure:"MEETING_DATE"`
	ConversationBlock string `mapstructure:"CONVERSATION_BLOCK"`
	ConversationChild string `mapstructure:"CONVERSATION_CHILD"`
	CommentEditor     string `mapstructure:"COMMENT_EDITOR"`
	Avatar            string `mapstructure:"AVATAR"`
}

// Markers are literal strings the pipeline matches against or writes out.
type Markers struct {
	Draft              string `mapstructure:"DRAFT"`
	Shared             string `mapstructure:"SHARED"`
	HeadlineTag        string `mapstructure:"HEADLINE_TAG"`
	Separator          string `mapstructure:"SEPARATOR"`
	CommentPlaceholder string `mapstructure:"COMMENT_PLACEHOLDER"`
}

var defaults = map[string]any{
	"LEMONBASE_EMAIL":     "",
	"LEMONBASE_PASSWORD":  "",
	"BASE_URL":            "https://lemonbase.com",
	"LOGIN_URL":           "/login",
	"REVIEWS_URL":         "/app/reviews?page=1",
	"ONE_ON_ONE_URL":      "/app/one-on-one?one_on_one_home%5Bpagination%5D%5Bcurrent%5D=1&one_on_one_home%5Bpagination%5D%5BpageSize%5D=100&one_on_one_home%5Bsorter%5D%5BcolumnKey%5D=startAt",
	"ONE_ON_ONE_BASE_URL": "/app/one-on-one/",

	"WAIT_TIMEOUT":    10 * time.Second,
	"REDIRECT_SETTLE": 5 * time.Second,
	"MEETING_SETTLE":  2 * time.Second,

	"REVIEW_LINKS_FILE":  "review_urls.txt",
	"SESSION_LINKS_FILE": "1_1_urls.txt",
	"REVIEWS_DIR":        "shared_reviews",
	"SESSIONS_DIR":       "one_on_one_sessions",
	"LEDGER_PATH":        "./ledger_data",

	"CHROME_BIN":  "",
	"HEADLESS":    true,
	"CONTROL_URL": "",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "auto",

	"TELEGRAM_BOT_TOKEN": "",
	"TELEGRAM_CHAT_ID":   0,

	"SELECTORS.LOGIN_EMAIL":        "#email",
	"SELECTORS.LOGIN_PASSWORD":     "#password",
	"SELECTORS.LISTING_ROW":        "tr.ant-table-row",
	"SELECTORS.SESSION_ROW":        "tr.ant-table-row[data-row-key]",
	"SELECTORS.ROW_CELL":           "td",
	"SELECTORS.ROW_CELL_INDEX":     1,
	"SELECTORS.CELL_ANCHOR":        "a",
	"SELECTORS.ROW_KEY_ATTR":       "data-row-key",
	"SELECTORS.NEXT_PAGE":          "ul.ant-pagination li.ant-pagination-next",
	"SELECTORS.NEXT_PAGE_BUTTON":   "button",
	"SELECTORS.DISABLED_ATTR":      "aria-disabled",
	"SELECTORS.REVIEW_BODY":        "div.css-1veelxu",
	"SELECTORS.REVIEW_HEADLINE":    "div.css-tojoty .typography-headline6.grow",
	"SELECTORS.MEETING_DATE":       "div.typography-body2-bold.text-secondary.css-avbo3m.essl35z0",
	"SELECTORS.CONVERSATION_BLOCK": "div[data-rbd-draggable-context-id][data-rbd-draggable-id]",
	"SELECTORS.CONVERSATION_CHILD": "div",
	"SELECTORS.COMMENT_EDITOR":     "textarea",
	"SELECTORS.AVATAR":             "span.ant-avatar img",

	"MARKERS.DRAFT":               "write-review",
	"MARKERS.SHARED":              "shared-review",
	"MARKERS.HEADLINE_TAG":        "[Headline]",
	"MARKERS.SEPARATOR":           "---",
	"MARKERS.COMMENT_PLACEHOLDER": "코멘트 입력",
}

// LoadConfig reads configuration from file, .env and environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err = v.ReadInConfig()
	if err != nil {
		// A missing config file is fine, defaults and env vars still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := mergeDotEnv(v, ".env"); err != nil {
		return Config{}, err
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// mergeDotEnv layers KEY=value pairs from a dotenv file under the environment.
func mergeDotEnv(v *viper.Viper, file string) error {
	env := viper.New()
	env.SetConfigFile(filepath.Clean(file))
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading %s: %w", file, err)
	}
	if err := v.MergeConfigMap(env.AllSettings()); err != nil {
		return fmt.Errorf("error merging %s: %w", file, err)
	}
	return nil
}

func (c Config) validate() error {
	base, err := url.Parse(c.BaseURL)
	if err != nil || !base.IsAbs() {
		return fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.BaseURL)
	}
	for name, d := range map[string]time.Duration{
		"WAIT_TIMEOUT":    c.WaitTimeout,
		"REDIRECT_SETTLE": c.RedirectSettle,
		"MEETING_SETTLE":  c.MeetingSettle,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.Selectors.RowCellIndex < 0 {
		return fmt.Errorf("SELECTORS.ROW_CELL_INDEX must not be negative")
	}
	return nil
}

// Resolve turns a configured URL or path into an absolute URL against BaseURL.
func (c Config) Resolve(ref string) string {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// TelegramEnabled reports whether run summaries should be sent to Telegram.
func (c Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}
