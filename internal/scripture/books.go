package scripture

import (
	"regexp"
	"strings"
)

// canonicalBooks lists the 66 books in canonical order.
var canonicalBooks = []string{
	"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy",
	"Joshua", "Judges", "Ruth", "1 Samuel", "2 Samuel",
	"1 Kings", "2 Kings", "1 Chronicles", "2 Chronicles", "Ezra",
	"Nehemiah", "Esther", "Job", "Psalms", "Proverbs",
	"Ecclesiastes", "Song of Solomon", "Isaiah", "Jeremiah", "Lamentations",
	"Ezekiel", "Daniel", "Hosea", "Joel", "Amos",
	"Obadiah", "Jonah", "Micah", "Nahum", "Habakkuk",
	"Zephaniah", "Haggai", "Zechariah", "Malachi",
	"Matthew", "Mark", "Luke", "John", "Acts",
	"Romans", "1 Corinthians", "2 Corinthians", "Galatians", "Ephesians",
	"Philippians", "Colossians", "1 Thessalonians", "2 Thessalonians", "1 Timothy",
	"2 Timothy", "Titus", "Philemon", "Hebrews", "James",
	"1 Peter", "2 Peter", "1 John", "2 John", "3 John",
	"Jude", "Revelation",
}

// abbreviations lists the accepted short forms per canonical book, lowercase
// and single-spaced.
var abbreviations = map[string][]string{
	"Genesis":         {"gen"},
	"Exodus":          {"ex", "exod"},
	"Leviticus":       {"lev"},
	"Numbers":         {"num"},
	"Deuteronomy":     {"deut", "dt"},
	"Joshua":          {"josh"},
	"Judges":          {"judg"},
	"1 Samuel":        {"1sam", "1 sam", "1samuel"},
	"2 Samuel":        {"2sam", "2 sam", "2samuel"},
	"1 Kings":         {"1kgs", "1 kgs", "1kings"},
	"2 Kings":         {"2kgs", "2 kgs", "2kings"},
	"1 Chronicles":    {"1chr", "1 chr", "1chronicles"},
	"2 Chronicles":    {"2chr", "2 chr", "2chronicles"},
	"Nehemiah":        {"neh"},
	"Esther":          {"esth"},
	"Psalms":          {"ps", "psa", "pss", "psalm"},
	"Proverbs":        {"prov"},
	"Ecclesiastes":    {"eccl", "qoh"},
	"Song of Solomon": {"song", "sos", "canticles"},
	"Isaiah":          {"isa"},
	"Jeremiah":        {"jer"},
	"Lamentations":    {"lam"},
	"Ezekiel":         {"ezek"},
	"Daniel":          {"dan"},
	"Hosea":           {"hos"},
	"Obadiah":         {"obad"},
	"Micah":           {"mic"},
	"Nahum":           {"nah"},
	"Habakkuk":        {"hab"},
	"Zephaniah":       {"zeph"},
	"Haggai":          {"hag"},
	"Zechariah":       {"zech"},
	"Malachi":         {"mal"},
	"Matthew":         {"matt", "mt"},
	"Mark":            {"mk"},
	"Luke":            {"lk"},
	"John":            {"jn"},
	"Romans":          {"rom"},
	"1 Corinthians":   {"1cor", "1 cor", "1corinthians"},
	"2 Corinthians":   {"2cor", "2 cor", "2corinthians"},
	"Galatians":       {"gal"},
	"Ephesians":       {"eph"},
	"Philippians":     {"phil"},
	"Colossians":      {"col"},
	"1 Thessalonians": {"1thess", "1 thess"},
	"2 Thessalonians": {"2thess", "2 thess"},
	"1 Timothy":       {"1tim", "1 tim"},
	"2 Timothy":       {"2tim", "2 tim"},
	"Philemon":        {"philem", "phlm"},
	"Hebrews":         {"heb"},
	"James":           {"jas"},
	"1 Peter":         {"1pet", "1 pet"},
	"2 Peter":         {"2pet", "2 pet"},
	"1 John":          {"1jn", "1 jn", "1john"},
	"2 John":          {"2jn", "2 jn", "2john"},
	"3 John":          {"3jn", "3 jn", "3john"},
	"Revelation":      {"rev", "apocalypse"},
}

// bookAliases maps every accepted spelling, canonical names included, to the
// canonical book name.
var bookAliases = make(map[string]string)

var (
	canonicalBookSet = make(map[string]struct{}, len(canonicalBooks))
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

func init() {
	for _, book := range canonicalBooks {
		canonicalBookSet[book] = struct{}{}
		bookAliases[aliasKey(book)] = book
		for _, alias := range abbreviations[book] {
			bookAliases[alias] = book
		}
	}
}

// NormalizeBook maps a user-typed book token to its canonical name.
// Unknown tokens are returned unchanged.
func NormalizeBook(rawBookToken string) string {
	if canonical, ok := bookAliases[aliasKey(rawBookToken)]; ok {
		return canonical
	}
	return rawBookToken
}

// IsCanonicalBook reports whether name is one of the canonical book names.
func IsCanonicalBook(name string) bool {
	_, ok := canonicalBookSet[name]
	return ok
}

// Books returns the canonical book names in canonical order.
func Books() []string {
	books := make([]string, len(canonicalBooks))
	copy(books, canonicalBooks)
	return books
}

func aliasKey(token string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRun.ReplaceAllString(token, " ")))
}
