package stats

import "errors"

var (
	ErrOpenStore    = errors.New("open stats store")
	ErrEncodeDetail = errors.New("encode event detail")
	ErrDecodeDetail = errors.New("decode event detail")
	ErrInsertEvent  = errors.New("insert filter event")
	ErrQueryEvents  = errors.New("query filter events")
)
