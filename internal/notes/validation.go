package notes

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	maxTitleLength     = 500
	maxReferenceLength = 190
)

var (
	errBlank            = errors.New("must not be blank")
	errVerseNotPositive = errors.New("must be at least 1")
	errEndWithoutStart  = errors.New("requires start_verse")
	errEndBeforeStart   = errors.New("must not be before start_verse")
)

// Validate checks the caller-supplied fields of a note.
func (d Draft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required, validation.By(notBlank), validation.RuneLength(0, maxTitleLength)),
		validation.Field(&d.Content, validation.Required, validation.By(notBlank)),
		validation.Field(&d.VerseReference, validation.RuneLength(0, maxReferenceLength)),
		validation.Field(&d.StartVerse, validation.By(positiveVerse)),
		validation.Field(&d.EndVerse, validation.By(positiveVerse), validation.By(endAfterStart(d.StartVerse))),
	)
}

func notBlank(value interface{}) error {
	text, _ := value.(string)
	if strings.TrimSpace(text) == "" {
		return errBlank
	}
	return nil
}

func positiveVerse(value interface{}) error {
	verse, _ := value.(*int)
	if verse != nil && *verse < 1 {
		return errVerseNotPositive
	}
	return nil
}

func endAfterStart(start *int) validation.RuleFunc {
	return func(value interface{}) error {
		end, _ := value.(*int)
		if end == nil {
			return nil
		}
		if start == nil {
			return errEndWithoutStart
		}
		if *end < *start {
			return errEndBeforeStart
		}
		return nil
	}
}
