package scripture

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// referenceLexer tokenizes free-text references such as "1 Cor 13:4-7".
var referenceLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Word", Pattern: `[A-Za-z]+`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Dash", Pattern: `[-\x{2013}]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// bookSpan captures the book part of a reference. A leading number belongs to
// the book ("1 Samuel", "3jn"), never to the chapter.
//
//nolint:govet // participle grammar tags are not standard struct tags
type bookSpan struct {
	Pos    lexer.Position
	Prefix *int     `parser:"@Int?"`
	Words  []string `parser:"@Word+"`
	EndPos lexer.Position
}

// text returns the book span exactly as the user typed it.
func (span *bookSpan) text(source string) string {
	if span.EndPos.Offset > span.Pos.Offset && span.EndPos.Offset <= len(source) {
		return strings.TrimSpace(source[span.Pos.Offset:span.EndPos.Offset])
	}
	words := strings.Join(span.Words, " ")
	if span.Prefix != nil {
		return strconv.Itoa(*span.Prefix) + " " + words
	}
	return words
}

// verseGrammar matches "<book> <chapter>:<verse>[-<verse2>]".
//
//nolint:govet // participle grammar tags are not standard struct tags
type verseGrammar struct {
	Book       *bookSpan `parser:"@@"`
	Chapter    int       `parser:"@Int Colon"`
	StartVerse int       `parser:"@Int"`
	EndVerse   *int      `parser:"( Dash @Int )?"`
}

// chapterGrammar matches "<book> <chapter>".
//
//nolint:govet // participle grammar tags are not standard struct tags
type chapterGrammar struct {
	Book    *bookSpan `parser:"@@"`
	Chapter int       `parser:"@Int"`
}

var (
	verseParser = participle.MustBuild[verseGrammar](
		participle.Lexer(referenceLexer),
		participle.Elide("Whitespace"),
	)
	chapterParser = participle.MustBuild[chapterGrammar](
		participle.Lexer(referenceLexer),
		participle.Elide("Whitespace"),
	)
)

// matchVerse attempts the chapter:verse[-verse] form.
func matchVerse(source string) (Reference, bool) {
	parsed, err := verseParser.ParseString("", source)
	if err != nil {
		return Reference{}, false
	}
	reference := Reference{
		Book:       NormalizeBook(parsed.Book.text(source)),
		Chapter:    parsed.Chapter,
		StartVerse: parsed.StartVerse,
		EndVerse:   parsed.StartVerse,
	}
	if parsed.EndVerse != nil {
		reference.EndVerse = *parsed.EndVerse
	}
	return reference, true
}

// matchChapter attempts the chapter-only form. Verse bounds stay unset.
func matchChapter(source string) (Reference, bool) {
	parsed, err := chapterParser.ParseString("", source)
	if err != nil {
		return Reference{}, false
	}
	return Reference{
		Book:    NormalizeBook(parsed.Book.text(source)),
		Chapter: parsed.Chapter,
	}, true
}
