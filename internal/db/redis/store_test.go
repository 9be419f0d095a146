package redis

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/recipematch/internal/db"
)

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

// --- client.go ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	if err := NewStoreForTest(c).Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	if err := NewStoreForTest(c).Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestWaitForReady_EventuallyUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
			Return(mock.ErrorResult(errors.New("connection refused"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
			Return(mock.Result(mock.RedisString("PONG"))),
	)

	if err := NewStoreForTest(c).WaitForReady(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- hash.go ---

func TestHSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "HSET" && cmd[1] == "recipe:1"
		})).
		Return(mock.Result(mock.RedisInt64(1)))

	err := NewStoreForTest(c).HSet(context.Background(), "recipe:1", map[string]string{"title": "肉じゃが"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "HSET" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	err := NewStoreForTest(c).HSet(context.Background(), "k", map[string]string{"f": "v"})
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
}

func TestHGetAll_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "recipe:1")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"title": mock.RedisString("肉じゃが"),
			"url":   mock.RedisString("https://example.com/1"),
		})))

	m, err := NewStoreForTest(c).HGetAll(context.Background(), "recipe:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["title"] != "肉じゃが" || m["url"] != "https://example.com/1" {
		t.Errorf("unexpected map %v", m)
	}
}

func TestHSetMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisInt64(2)),
		})

	err := NewStoreForTest(c).HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f1": "v1"}},
		{Key: "k2", Fields: map[string]string{"f2": "v2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.ErrorResult(errors.New("OOM")),
		})

	err := NewStoreForTest(c).HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f": "v"}},
		{Key: "k2", Fields: map[string]string{"f": "v"}},
	})
	if err == nil || !strings.Contains(err.Error(), "k2") {
		t.Fatalf("expected error naming k2, got %v", err)
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	if err := NewStoreForTest(nil).HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHGetAllMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{"title": mock.RedisString("a")})),
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})),
		})

	out, err := NewStoreForTest(c).HGetAllMulti(context.Background(), []string{"k1", "k2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0]["title"] != "a" || len(out[1]) != 0 {
		t.Errorf("unexpected result %v", out)
	}
}

func TestDel_Empty(t *testing.T) {
	if err := NewStoreForTest(nil).Del(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDel_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "a", "b")).
		Return(mock.Result(mock.RedisInt64(2)))

	if err := NewStoreForTest(c).Del(context.Background(), "a", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- kv.go ---

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "missing")).
		Return(mock.Result(mock.RedisNil()))

	_, err := NewStoreForTest(c).Get(context.Background(), "missing")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.Result(mock.RedisString("payload")))

	got, err := NewStoreForTest(c).Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q", got)
	}
}

func TestSetWithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	if err := NewStoreForTest(c).SetWithTTL(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_ZeroFallsBackToSet(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v")).
		Return(mock.Result(mock.RedisString("OK")))

	if err := NewStoreForTest(c).SetWithTTL(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- set.go ---

func TestSAddMulti_SkipsEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.Result(mock.RedisInt64(2))})

	err := NewStoreForTest(c).SAddMulti(context.Background(), []db.SetAddItem{
		{Key: "ing:1", Members: []string{"r1", "r2"}},
		{Key: "ing:2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSAddMulti_AllEmpty(t *testing.T) {
	err := NewStoreForTest(nil).SAddMulti(context.Background(), []db.SetAddItem{{Key: "x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSUnion(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SUNION", "ing:1", "ing:2")).
		Return(mock.Result(mock.RedisArray(mock.RedisString("r1"), mock.RedisString("r2"))))

	got, err := NewStoreForTest(c).SUnion(context.Background(), "ing:1", "ing:2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 members, got %v", got)
	}
}

func TestSUnion_NoKeys(t *testing.T) {
	got, err := NewStoreForTest(nil).SUnion(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestSMembers_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SMEMBERS", "ing:1")).
		Return(mock.ErrorResult(context.Canceled))

	_, err := NewStoreForTest(c).SMembers(context.Background(), "ing:1")
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

// --- index.go ---

func TestCreateIndex_Args(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	def := db.NewIndex("recipes").
		Prefix("rm:recipe:").
		Tag("category").
		VectorHNSW("vector", 4, db.DistanceCosine, 16, 200).
		MustBuild()

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.CREATE", "recipes", "ON", "HASH", "PREFIX", "1", "rm:recipe:",
			"SCHEMA",
			"category", "TAG",
			"vector", "VECTOR", "HNSW", "10",
			"TYPE", "FLOAT32", "DIM", "4", "DISTANCE_METRIC", "COSINE", "M", "16", "EF_CONSTRUCTION", "200",
		)).
		Return(mock.Result(mock.RedisString("OK")))

	if err := NewStoreForTest(c).CreateIndex(context.Background(), def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.Result(mock.RedisError("Index already exists")))

	def := db.NewIndex("recipes").Tag("category").MustBuild()
	err := NewStoreForTest(c).CreateIndex(context.Background(), def)
	if !errors.Is(err, db.ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_InvalidDefinition(t *testing.T) {
	err := NewStoreForTest(nil).CreateIndex(context.Background(), &db.IndexDefinition{Name: "x"})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestIndexExists(t *testing.T) {
	tests := []struct {
		name   string
		result rueidis.RedisResult
		want   bool
	}{
		{"present", mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("recipes"))), true},
		{"absent", mock.Result(mock.RedisError("Unknown index name")), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)
			c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "recipes")).Return(tc.result)

			got, err := NewStoreForTest(c).IndexExists(context.Background(), "recipes")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "recipes")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	err := NewStoreForTest(c).DropIndex(context.Background(), "recipes")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

// --- search.go ---

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var captured []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			captured = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("rm:recipe:1"),
			mock.RedisArray(
				mock.RedisString("title"), mock.RedisString("肉じゃが"),
				mock.RedisString("__vector_score"), mock.RedisString("0.1"),
			),
			mock.RedisString("rm:recipe:2"),
			mock.RedisArray(
				mock.RedisString("title"), mock.RedisString("筑前煮"),
				mock.RedisString("__vector_score"), mock.RedisString("1.4"),
			),
		)))

	res, err := NewStoreForTest(c).SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "recipes",
		Vector:       []float32{0.1, 0.2},
		K:            10,
		ReturnFields: []string{"title"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 || len(res.Entries) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if math.Abs(res.Entries[0].Score-0.9) > 1e-9 {
		t.Errorf("score = %v, want 0.9", res.Entries[0].Score)
	}
	if res.Entries[1].Score != 0 {
		t.Errorf("score = %v, want clamped 0", res.Entries[1].Score)
	}
	if _, ok := res.Entries[0].Fields["__vector_score"]; ok {
		t.Error("__vector_score should be stripped from fields")
	}
	if res.Entries[0].Fields["title"] != "肉じゃが" {
		t.Errorf("title = %q", res.Entries[0].Fields["title"])
	}

	joined := strings.Join(captured, " ")
	for _, want := range []string{"*=>[KNN 10 @vector $BLOB]", "RETURN 2 title __vector_score", "DIALECT 2"} {
		if !strings.Contains(joined, want) {
			t.Errorf("command missing %q: %s", want, joined)
		}
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	res, err := NewStoreForTest(c).SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "recipes", Vector: []float32{1}, K: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(res.Entries))
	}
}

func TestSearchKNN_MissingIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisError("recipes: no such index")))

	_, err := NewStoreForTest(c).SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "recipes", Vector: []float32{1}, K: 5,
	})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := NewStoreForTest(nil)
	tests := []struct {
		name string
		q    db.KNNQuery
	}{
		{"no index", db.KNNQuery{Vector: []float32{1}, K: 1}},
		{"no vector", db.KNNQuery{IndexName: "i", K: 1}},
		{"zero k", db.KNNQuery{IndexName: "i", Vector: []float32{1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.SearchKNN(context.Background(), &tc.q); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestVectorToBytes(t *testing.T) {
	b := vectorToBytes([]float32{1.0})
	if len(b) != 4 {
		t.Fatalf("len = %d, want 4", len(b))
	}
	// 1.0f = 0x3f800000 little-endian
	if b != "\x00\x00\x80\x3f" {
		t.Errorf("unexpected encoding %q", b)
	}
}

func TestIsRedisErr(t *testing.T) {
	err := mock.Result(mock.RedisError("ERR Unknown Index Name")).Error()
	if !isRedisErr(err, "unknown index name") {
		t.Error("expected case-insensitive match")
	}
	if isRedisErr(errors.New("unknown index name"), "unknown index name") {
		t.Error("plain errors are not server errors")
	}
}
