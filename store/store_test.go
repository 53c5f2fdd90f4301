package store

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kcmvp/orderdesk/entity"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
)

func sqliteSource(t *testing.T) DataSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.db")
	return DataSource{URL: "file:" + path + "?_busy_timeout=5000", MaxOpenConns: 4}
}

func order(name string, qty int) entity.Order {
	return entity.Order{
		CustomerName: name,
		Email:        "buyer@example.com",
		ProductName:  "Widget",
		Quantity:     qty,
	}
}

type StoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	st, err := Open(s.ctx, sqliteSource(s.T()), zerolog.Nop())
	s.Require().NoError(err)
	s.Require().NoError(st.Initialize(s.ctx))
	s.store = st
}

func (s *StoreTestSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) TestDriver() {
	s.Equal(SQLite, s.store.Driver())
}

func (s *StoreTestSuite) TestInitialize_Idempotent() {
	id, err := s.store.Create(s.ctx, order("Ann", 1))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Initialize(s.ctx))
	s.Require().NoError(s.store.Initialize(s.ctx))
	got, err := s.store.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(id, got[0].OrderID)
}

func (s *StoreTestSuite) TestCreate_ReturnsPositiveIncreasingIDs() {
	first, err := s.store.Create(s.ctx, order("Ann", 1))
	s.Require().NoError(err)
	second, err := s.store.Create(s.ctx, order("Bob", 2))
	s.Require().NoError(err)
	s.Positive(first)
	s.Greater(second, first)
}

func (s *StoreTestSuite) TestCreate_ThenListRecent() {
	want := entity.Order{
		CustomerName: "John Smith",
		Email:        "john@example.com",
		ProductName:  "Widget",
		Quantity:     3,
		Note:         "leave at the door",
	}
	before := time.Now().Add(-time.Minute)
	id, err := s.store.Create(s.ctx, want)
	s.Require().NoError(err)

	got, err := s.store.ListRecent(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(id, got[0].OrderID)
	s.True(want.SameContent(got[0]))
	s.True(got[0].CreatedAt.After(before))
}

func (s *StoreTestSuite) TestCreate_IgnoresCallerIDAndTimestamp() {
	o := order("Ann", 1)
	o.OrderID = 999
	o.CreatedAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	id, err := s.store.Create(s.ctx, o)
	s.Require().NoError(err)
	s.NotEqual(int64(999), id)
	got, err := s.store.ListRecent(s.ctx, 1)
	s.Require().NoError(err)
	s.True(got[0].CreatedAt.Year() > 2000)
}

func (s *StoreTestSuite) TestListRecent_NewestFirst() {
	var ids []int64
	for _, name := range []string{"O1", "O2", "O3"} {
		id, err := s.store.Create(s.ctx, order(name, 1))
		s.Require().NoError(err)
		ids = append(ids, id)
	}
	got, err := s.store.ListRecent(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("O3", got[0].CustomerName)
	s.Equal("O2", got[1].CustomerName)
	s.Equal([]int64{ids[2], ids[1]}, []int64{got[0].OrderID, got[1].OrderID})
}

func (s *StoreTestSuite) TestListRecent_LimitAboveRowCount() {
	_, err := s.store.Create(s.ctx, order("Ann", 1))
	s.Require().NoError(err)
	got, err := s.store.ListRecent(s.ctx, 50)
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *StoreTestSuite) TestListRecent_Empty() {
	got, err := s.store.ListRecent(s.ctx, 5)
	s.Require().NoError(err)
	s.NotNil(got)
	s.Empty(got)
}

func (s *StoreTestSuite) TestListRecent_InvalidLimit() {
	for _, limit := range []int{0, -1} {
		_, err := s.store.ListRecent(s.ctx, limit)
		s.ErrorIs(err, ErrInvalidLimit)
	}
}

func (s *StoreTestSuite) TestCreate_ConstraintViolation() {
	for _, qty := range []int{0, -1} {
		_, err := s.store.Create(s.ctx, order("Ann", qty))
		s.ErrorIs(err, ErrConstraint)
	}
	got, err := s.store.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *StoreTestSuite) TestCreate_MissingTable() {
	_, err := s.store.db.ExecContext(s.ctx, "DROP TABLE orders")
	s.Require().NoError(err)
	_, err = s.store.Create(s.ctx, order("Ann", 1))
	s.ErrorIs(err, ErrSchema)
	_, err = s.store.ListRecent(s.ctx, 1)
	s.ErrorIs(err, ErrSchema)
}

func (s *StoreTestSuite) TestCreate_Concurrent() {
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Create(s.ctx, order("Ann", 1))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}
	got, err := s.store.ListRecent(s.ctx, 100)
	s.Require().NoError(err)
	s.Len(got, n)
	seen := map[int64]struct{}{}
	for _, o := range got {
		seen[o.OrderID] = struct{}{}
	}
	s.Len(seen, n)
}

func (s *StoreTestSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}

func TestStore_Uninitialized(t *testing.T) {
	st, err := Open(context.Background(), sqliteSource(t), zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	_, err = st.Create(context.Background(), order("Ann", 1))
	assert.ErrorIs(t, err, ErrUninitialized)
	_, err = st.ListRecent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUninitialized)
}

func TestOpen_Unreachable(t *testing.T) {
	ds := DataSource{URL: filepath.Join(t.TempDir(), "missing", "dir", "orders.db")}
	_, err := Open(context.Background(), ds, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestOpen_InMemory(t *testing.T) {
	st, err := Open(context.Background(), DataSource{URL: ":memory:", MaxOpenConns: 10}, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Initialize(context.Background()))
	_, err = st.Create(context.Background(), order("Ann", 1))
	require.NoError(t, err)
	got, err := st.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_TracesStatements(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	st, err := Open(context.Background(), sqliteSource(t), logger)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Initialize(context.Background()))
	_, err = st.Create(context.Background(), order("Ann", 1))
	require.NoError(t, err)

	var ops []string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		ops = append(ops, gjson.GetBytes(line, "op").String())
		assert.Equal(t, "sqlite3", gjson.GetBytes(line, "driver").String())
	}
	assert.Equal(t, []string{"ping", "initialize", "create"}, ops)
	assert.Contains(t, buf.String(), "INSERT INTO orders")
}
