package reviews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func reviewsPage(t *testing.T, timestamps []int64, total int, nextButton string) []byte {
	t.Helper()
	reviews := make([]map[string]any, 0, len(timestamps))
	for _, ts := range timestamps {
		reviews = append(reviews, map[string]any{"createdAt": ts, "score": 5})
	}
	widget, err := json.Marshal(map[string]any{
		"reviews": reviews,
		"paging": map[string]any{
			"total":      total,
			"perPage":    30,
			"nextButton": nextButton,
		},
	})
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"widgetStates": map[string]string{
			"webListReviews-3231-default-1": string(widget),
		},
	})
	require.NoError(t, err)
	return body
}

func TestRecentTimestampsPaging(t *testing.T) {
	now := time.Now().Unix()
	var pagesServed int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		require.Equal(t, "/api/entrypoint-api.bx/page/json/v2", r.URL.Path)
		switch pagesServed {
		case 1:
			require.Contains(t, r.URL.Query().Get("url"), "sort=date_desc")
			w.Write(reviewsPage(t, []int64{now - 3600, now - 7200}, 64, "?page=2&page_key=abc"))
		default:
			require.Contains(t, r.URL.Query().Get("url"), "page_key=abc")
			w.Write(reviewsPage(t, []int64{now - 86400}, 64, ""))
		}
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop().Sugar()).WithBaseURL(srv.URL)
	sum, err := client.RecentTimestamps(context.Background(), "123456789", 5)
	require.NoError(t, err)

	require.Equal(t, 2, pagesServed)
	require.Equal(t, 2, sum.PagesFetched)
	require.Equal(t, 64, sum.Total)
	require.Len(t, sum.Timestamps, 3)
	require.Equal(t, 3, sum.CountSince(time.Now().AddDate(0, 0, -7)))
}

func TestRecentTimestampsStopsPastWindow(t *testing.T) {
	old := time.Now().AddDate(0, 0, -45).Unix()
	var pagesServed int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		w.Write(reviewsPage(t, []int64{old}, 900, "?page=2&page_key=next"))
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop().Sugar()).WithBaseURL(srv.URL)
	sum, err := client.RecentTimestamps(context.Background(), "123456789", 5)
	require.NoError(t, err)
	// The only review is already outside the monthly window, so paging
	// stops after the first page despite the nextButton.
	require.Equal(t, 1, pagesServed)
	require.Len(t, sum.Timestamps, 1)
}

func TestRecentTimestampsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop().Sugar()).WithBaseURL(srv.URL)
	_, err := client.RecentTimestamps(context.Background(), "123456789", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), fmt.Sprint(http.StatusForbidden))
}
