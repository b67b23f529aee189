package models

// Language is a script language offered by the studio. Codes are passed through
// opaquely to script generation.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SupportedLanguages is the fixed set of locales the studio can write scripts in.
var SupportedLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "zh", Name: "Chinese"},
	{Code: "hi", Name: "Hindi"},
}

// IsSupportedLanguage reports whether code is one of the offered locales.
func IsSupportedLanguage(code string) bool {
	for _, l := range SupportedLanguages {
		if l.Code == code {
			return true
		}
	}
	return false
}
