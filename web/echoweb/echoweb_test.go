package echoweb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kcmvp/orderdesk/intake"
	"github.com/kcmvp/orderdesk/store"
	"github.com/kcmvp/orderdesk/validator"
	"github.com/kcmvp/orderdesk/web"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
)

type EchoTestSuite struct {
	suite.Suite
	store   *store.Store
	handler http.Handler
}

func (s *EchoTestSuite) SetupTest() {
	ds := store.DataSource{URL: "file:" + filepath.Join(s.T().TempDir(), "orders.db") + "?_busy_timeout=5000"}
	st, err := store.Open(context.Background(), ds, zerolog.Nop())
	s.Require().NoError(err)
	s.Require().NoError(st.Initialize(context.Background()))
	s.store = st
	h := web.NewHandler(intake.NewService(st, zerolog.Nop()), web.Options{Rate: 0.01, Burst: 5}, zerolog.Nop())
	s.handler = New(h).Handler()
}

func (s *EchoTestSuite) TearDownTest() {
	_ = s.store.Close()
}

func TestEchoTestSuite(t *testing.T) {
	suite.Run(t, new(EchoTestSuite))
}

func (s *EchoTestSuite) do(method, target, contentType, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *EchoTestSuite) TestSubmitJSON() {
	tests := []struct {
		name   string
		body   string
		status int
		errors int
	}{
		{"valid", `{"customer_name":" john smith ","email":" JOHN@EXAMPLE.COM ","product_name":" widget ","quantity":3}`, http.StatusCreated, 0},
		{"all invalid", `{"customer_name":"","email":"bad","product_name":"","quantity":0}`, http.StatusBadRequest, 4},
		{"quantity as text", `{"customer_name":"a","email":"a@b.com","product_name":"p","quantity":"three"}`, http.StatusBadRequest, 1},
		{"malformed", `{"customer_name":`, http.StatusBadRequest, 1},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			rec := s.do(http.MethodPost, web.PathOrders, "application/json", tc.body)
			s.Equal(tc.status, rec.Code)
			body := rec.Body.String()
			if tc.errors > 0 {
				s.Len(gjson.Get(body, "errors").Array(), tc.errors)
				return
			}
			s.Positive(gjson.Get(body, "order_id").Int())
			s.Equal("John Smith", gjson.Get(body, "order.customer_name").String())
			s.Equal("john@example.com", gjson.Get(body, "order.email").String())
		})
	}
}

func (s *EchoTestSuite) TestRequestID() {
	rec := s.do(http.MethodGet, web.PathHealth, "", "")
	s.Len(rec.Header().Get(web.HeaderRequestID), 36)

	rec = s.do(http.MethodGet, web.PathHealth, "", "", web.HeaderRequestID, "trace-42")
	s.Equal("trace-42", rec.Header().Get(web.HeaderRequestID))
}

func (s *EchoTestSuite) TestRecent() {
	for _, name := range []string{"o1", "o2", "o3"} {
		rec := s.do(http.MethodPost, web.PathOrders, "application/json",
			`{"customer_name":"`+name+`","email":"a@b.com","product_name":"p","quantity":1}`)
		s.Require().Equal(http.StatusCreated, rec.Code)
	}
	rec := s.do(http.MethodGet, web.PathOrders+"?limit=2", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	names := gjson.Get(rec.Body.String(), "#.customer_name").Array()
	s.Require().Len(names, 2)
	s.Equal("O3", names[0].String())
	s.Equal("O2", names[1].String())

	rec = s.do(http.MethodGet, web.PathOrders+"?limit=0", "", "")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(web.MsgInvalidLimit, gjson.Get(rec.Body.String(), "errors.0").String())
}

func (s *EchoTestSuite) TestPage() {
	rec := s.do(http.MethodGet, web.PathPage, "", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Type"), "text/html")
	s.Contains(rec.Body.String(), web.MsgNoRecords)

	form := url.Values{"customer_name": {"ann"}, "email": {"not-an-email"}, "product_name": {"lamp"}, "quantity": {"2"}}
	rec = s.do(http.MethodPost, web.PathPage, "application/x-www-form-urlencoded", form.Encode())
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), validator.MsgEmail)
	s.Contains(rec.Body.String(), `value="not-an-email"`)

	form.Set("email", "ann@example.com")
	rec = s.do(http.MethodPost, web.PathPage, "application/x-www-form-urlencoded", form.Encode())
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), web.MsgSaved)
	s.Contains(rec.Body.String(), "ann@example.com")
}

func (s *EchoTestSuite) TestRateLimit() {
	body := `{"customer_name":"a","email":"a@b.com","product_name":"p","quantity":1}`
	for i := 0; i < 5; i++ {
		s.Equal(http.StatusCreated, s.do(http.MethodPost, web.PathOrders, "application/json", body).Code)
	}
	rec := s.do(http.MethodPost, web.PathOrders, "application/json", body)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal(web.MsgRateLimited, gjson.Get(rec.Body.String(), "errors.0").String())
	// the HTML form shares the client's budget
	form := url.Values{"customer_name": {"a"}, "email": {"a@b.com"}, "product_name": {"p"}, "quantity": {"1"}}
	rec = s.do(http.MethodPost, web.PathPage, "application/x-www-form-urlencoded", form.Encode())
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Contains(rec.Body.String(), web.MsgRateLimited)
	// reads are not limited
	s.Equal(http.StatusOK, s.do(http.MethodGet, web.PathOrders, "", "").Code)
}

func (s *EchoTestSuite) TestHealth() {
	rec := s.do(http.MethodGet, web.PathHealth, "", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())

	s.Require().NoError(s.store.Close())
	rec = s.do(http.MethodGet, web.PathHealth, "", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}
