package catalog

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func TestNormalizeFillsPlaceholders(t *testing.T) {
	r := row{
		id:      uuid.New(),
		ownerID: uuid.New(),
		title:   "Dune",
		author:  "Frank Herbert",
	}

	book := normalize(r)

	assert.Equal(t, PlaceholderGenre, book.Genre)
	assert.Equal(t, PlaceholderCover, book.CoverURL)
	assert.Equal(t, ConditionGood, book.Condition)
	assert.Equal(t, ExchangeBoth, book.ExchangeMethod)
	assert.Empty(t, book.ISBN)
}

func TestNormalizeKeepsStoredValues(t *testing.T) {
	r := row{
		id:             uuid.New(),
		ownerID:        uuid.New(),
		title:          "Dune",
		author:         "Frank Herbert",
		genre:          nullStr("Sci-Fi"),
		condition:      nullStr("Worn"),
		coverURL:       nullStr("https://covers.example/dune.jpg"),
		exchangeMethod: nullStr("Mail"),
	}

	book := normalize(r)

	assert.Equal(t, "Sci-Fi", book.Genre)
	assert.Equal(t, ConditionWorn, book.Condition)
	assert.Equal(t, "https://covers.example/dune.jpg", book.CoverURL)
	assert.Equal(t, ExchangeMail, book.ExchangeMethod)
}

func TestNormalizeOwner(t *testing.T) {
	id := uuid.New()

	owner := NormalizeOwner(id, sql.NullString{}, sql.NullString{})
	assert.Equal(t, PlaceholderName, owner.Name)
	assert.Equal(t, PlaceholderCover, owner.ProfilePic)

	owner = NormalizeOwner(id, nullStr("Ada"), nullStr("/pics/ada.png"))
	assert.Equal(t, "Ada", owner.Name)
	assert.Equal(t, "/pics/ada.png", owner.ProfilePic)
}

// Whatever garbage the columns hold, a normalized book never exposes an
// empty display field or an out-of-range enum.
func TestNormalizeAlwaysFullyPopulated(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := row{
			id:             uuid.New(),
			ownerID:        uuid.New(),
			title:          rapid.String().Draw(t, "title"),
			author:         rapid.String().Draw(t, "author"),
			genre:          nullStr(rapid.String().Draw(t, "genre")),
			condition:      nullStr(rapid.String().Draw(t, "condition")),
			coverURL:       nullStr(rapid.String().Draw(t, "cover")),
			exchangeMethod: nullStr(rapid.String().Draw(t, "method")),
		}

		book := normalize(r)

		if book.Genre == "" || book.CoverURL == "" {
			t.Fatalf("normalized book has empty display fields: %+v", book)
		}
		switch book.Condition {
		case ConditionNew, ConditionGood, ConditionWorn:
		default:
			t.Fatalf("condition out of range: %q", book.Condition)
		}
		switch book.ExchangeMethod {
		case ExchangeInPerson, ExchangeMail, ExchangeBoth:
		default:
			t.Fatalf("exchange method out of range: %q", book.ExchangeMethod)
		}
	})
}

func TestMergePatch(t *testing.T) {
	base := Book{
		Title:          "Dune",
		Author:         "Frank Herbert",
		Genre:          "Sci-Fi",
		Condition:      ConditionGood,
		ExchangeMethod: ExchangeBoth,
	}

	title := "Dune Messiah"
	condition := "Worn"
	merged := mergePatch(base, Patch{Title: &title, Condition: &condition})

	assert.Equal(t, "Dune Messiah", merged.Title)
	assert.Equal(t, ConditionWorn, merged.Condition)
	assert.Equal(t, "Frank Herbert", merged.Author)
	assert.Equal(t, "Sci-Fi", merged.Genre)
}
