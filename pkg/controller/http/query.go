package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/usecase"
)

// queryReader collects the first malformed parameter of a listing query
type queryReader struct {
	q   url.Values
	err error
}

func (qr *queryReader) fail(key, value string) {
	if qr.err == nil {
		qr.err = goerr.Wrap(usecase.ErrValidation, "invalid query parameter "+key, goerr.V("value", value))
	}
}

func (qr *queryReader) str(key string) string {
	return strings.TrimSpace(qr.q.Get(key))
}

func (qr *queryReader) intParam(key string) int {
	v := qr.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		qr.fail(key, v)
	}
	return n
}

func (qr *queryReader) boolParam(key string) *bool {
	v := qr.str(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		qr.fail(key, v)
		return nil
	}
	return &b
}

// timeParam accepts RFC 3339 timestamps and plain dates
func (qr *queryReader) timeParam(key string) *time.Time {
	v := qr.str(key)
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	qr.fail(key, v)
	return nil
}

func (qr *queryReader) page() model.PageRequest {
	p := model.PageRequest{
		Page:   qr.intParam("page"),
		Limit:  qr.intParam("limit"),
		SortBy: qr.str("sortBy"),
	}
	switch order := qr.str("sortOrder"); order {
	case "", "desc", "DESC":
		p.SortDesc = true
	case "asc", "ASC":
		p.SortDesc = false
	default:
		qr.fail("sortOrder", order)
	}
	return p
}
