package protocol

// Function names of the session setup calls.
const (
	FuncSetAuthToken       = "set_auth_token"
	FuncSetLocale          = "set_locale"
	FuncChartCreateSession = "chart_create_session"
	FuncQuoteCreateSession = "quote_create_session"
	FuncQuoteSetFields     = "quote_set_fields"
	FuncQuoteHibernateAll  = "quote_hibernate_all"
)

// UnauthorizedToken is sent as the auth token when no real token is
// available.
const UnauthorizedToken = "unauthorized_user_token"

// Locale sent by set_locale.
const (
	LocaleLanguage = "en"
	LocaleCountry  = "US"
)

// InitSequence is the order in which setup calls must reach the server:
// auth before session creation, sessions before field subscription, and
// hibernation last so quote sessions start idle.
var InitSequence = [...]string{
	FuncSetAuthToken,
	FuncSetLocale,
	FuncChartCreateSession,
	FuncQuoteCreateSession,
	FuncQuoteSetFields,
	FuncQuoteHibernateAll,
}

var quoteFields = [23]string{
	"ch", "chp", "current_session", "description", "local_description",
	"language", "exchange", "fractional", "is_tradable", "lp",
	"lp_time", "minmov", "minmove2", "original_name", "pricescale",
	"pro_name", "short_name", "type", "update_mode", "volume",
	"currency_code", "rchp", "rtc",
}

// QuoteFields returns a copy of the data fields subscribed for every
// quote session.
func QuoteFields() []string {
	fields := quoteFields
	return fields[:]
}
