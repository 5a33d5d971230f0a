package language

// Language is a transcription language option offered by the
// configure wizard.
type Language struct {
	Code string // ISO 639-1, or "auto"
	Name string
}

// Auto lets the backend detect the spoken language. It is the default
// and is omitted from transcription requests on the wire.
var Auto = Language{Code: "auto", Name: "Auto-detect"}

var languages = []Language{
	{Code: "ar", Name: "Arabic"},
	{Code: "zh", Name: "Chinese"},
	{Code: "cs", Name: "Czech"},
	{Code: "da", Name: "Danish"},
	{Code: "nl", Name: "Dutch"},
	{Code: "en", Name: "English"},
	{Code: "fi", Name: "Finnish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "el", Name: "Greek"},
	{Code: "he", Name: "Hebrew"},
	{Code: "hi", Name: "Hindi"},
	{Code: "hu", Name: "Hungarian"},
	{Code: "id", Name: "Indonesian"},
	{Code: "it", Name: "Italian"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "no", Name: "Norwegian"},
	{Code: "pl", Name: "Polish"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ro", Name: "Romanian"},
	{Code: "ru", Name: "Russian"},
	{Code: "es", Name: "Spanish"},
	{Code: "sv", Name: "Swedish"},
	{Code: "th", Name: "Thai"},
	{Code: "tr", Name: "Turkish"},
	{Code: "uk", Name: "Ukrainian"},
	{Code: "vi", Name: "Vietnamese"},
}

var byCode = func() map[string]Language {
	m := make(map[string]Language, len(languages)+2)
	m[Auto.Code] = Auto
	m[""] = Auto
	for _, l := range languages {
		m[l.Code] = l
	}
	return m
}()

// FromCode resolves a code to its language, falling back to Auto.
func FromCode(code string) Language {
	if l, ok := byCode[code]; ok {
		return l
	}
	return Auto
}

// List returns the selectable languages with Auto first.
func List() []Language {
	out := make([]Language, 0, len(languages)+1)
	out = append(out, Auto)
	out = append(out, languages...)
	return out
}

// IsValidCode reports whether code is selectable. Empty counts as
// auto-detect.
func IsValidCode(code string) bool {
	_, ok := byCode[code]
	return ok
}
