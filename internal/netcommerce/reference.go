package netcommerce

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ReferenceDelimiter separates the order id from the per-attempt token in txtIndex.
const ReferenceDelimiter = "_"

var lastToken atomic.Int64

// NewOrderReference builds a txtIndex value for orderID. The token is a
// nanosecond timestamp forced to be strictly increasing within the process, so
// re-signing the same order never reuses a reference.
func NewOrderReference(orderID int64, now time.Time) string {
	return strconv.FormatInt(orderID, 10) + ReferenceDelimiter + strconv.FormatInt(nextToken(now), 10)
}

func nextToken(now time.Time) int64 {
	candidate := now.UnixNano()
	for {
		prev := lastToken.Load()
		next := candidate
		if next <= prev {
			next = prev + 1
		}
		if lastToken.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// OrderIDFromReference extracts the order id prefix from a txtIndex value.
func OrderIDFromReference(reference string) (int64, error) {
	head, _, _ := strings.Cut(strings.TrimSpace(reference), ReferenceDelimiter)
	if head == "" {
		return 0, fmt.Errorf("%w: empty order id", ErrMalformedOrderReference)
	}
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedOrderReference, err)
	}
	if id < 0 {
		return 0, fmt.Errorf("%w: negative order id", ErrMalformedOrderReference)
	}
	return id, nil
}
