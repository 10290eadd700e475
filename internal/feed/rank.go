package feed

import (
	"math"
	"strings"
	"time"

	"github.com/yungbote/agora-backend/internal/domain"
)

type Sort string

const (
	SortNew           Sort = "new"
	SortTop           Sort = "top"
	SortHot           Sort = "hot"
	SortRising        Sort = "rising"
	SortControversial Sort = "controversial"
)

const (
	hotGravity    = 1.8
	risingGravity = 1.2
	ageOffset     = 2.0
)

// ParseSort maps a query value to a sort mode; empty means hot.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortHot:
		return SortHot, nil
	case SortNew:
		return SortNew, nil
	case SortTop:
		return SortTop, nil
	case SortRising:
		return SortRising, nil
	case SortControversial:
		return SortControversial, nil
	}
	return "", domain.Validation("feed.sort", "sort", "unknown sort mode "+s)
}

// TimeDecayed reports whether the ordering depends on the reference clock or
// on a computed rank rather than stored columns alone.
func (s Sort) TimeDecayed() bool {
	return s == SortHot || s == SortRising || s == SortControversial
}

func ageHours(createdAt, asOf time.Time) float64 {
	h := asOf.Sub(createdAt).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// HotRank is score / (ageHours + 2)^1.8.
func HotRank(score int, createdAt, asOf time.Time) float64 {
	return float64(score) / math.Pow(ageHours(createdAt, asOf)+ageOffset, hotGravity)
}

// RisingRank is vote_count / (ageHours + 2)^1.2.
func RisingRank(voteCount int, createdAt, asOf time.Time) float64 {
	return float64(voteCount) / math.Pow(ageHours(createdAt, asOf)+ageOffset, risingGravity)
}

// ControversialRank is vote_count / (|score| + 1).
func ControversialRank(voteCount, score int) float64 {
	if score < 0 {
		score = -score
	}
	return float64(voteCount) / float64(score+1)
}

// Rank computes the ordering key of a post for a sort mode.
func Rank(s Sort, score, voteCount int, createdAt, asOf time.Time) float64 {
	switch s {
	case SortTop:
		return float64(score)
	case SortHot:
		return HotRank(score, createdAt, asOf)
	case SortRising:
		return RisingRank(voteCount, createdAt, asOf)
	case SortControversial:
		return ControversialRank(voteCount, score)
	default:
		return 0
	}
}
