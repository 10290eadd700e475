package feed

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/domain"
)

// Cursor is the keyset position after the last item of a page. AsOf pins the
// clock that time-decayed ranks were computed against on the first page.
type Cursor struct {
	Sort      Sort      `json:"m"`
	AsOf      time.Time `json:"a"`
	CreatedAt time.Time `json:"t"`
	Score     int       `json:"s,omitempty"`
	Rank      float64   `json:"r,omitempty"`
	ID        uuid.UUID `json:"i"`
}

func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque cursor and checks it belongs to sort s.
func DecodeCursor(s Sort, token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, domain.Validation("feed.cursor", "cursor", "malformed cursor")
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, domain.Validation("feed.cursor", "cursor", "malformed cursor")
	}
	if c.Sort != s {
		return nil, domain.Validation("feed.cursor", "cursor", "cursor belongs to sort "+string(c.Sort))
	}
	if c.ID == uuid.Nil || c.CreatedAt.IsZero() || c.AsOf.IsZero() {
		return nil, domain.Validation("feed.cursor", "cursor", "incomplete cursor")
	}
	return &c, nil
}
