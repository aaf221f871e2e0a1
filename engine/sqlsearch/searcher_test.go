package sqlsearch

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alp4ka/searchpager"
)

const quote = "[`'\"]"

func Test_New(t *testing.T) {
	_, db, _, err := newGORMMySQLMock()
	require.NoError(t, err)

	_, err = New(nil)
	require.Error(t, err)

	_, err = New(db, WithKeyColumn("id; drop table"))
	require.Error(t, err)

	_, err = New(db, WithTextColumns("title", "body--"))
	require.Error(t, err)

	s, err := New(db, WithTextColumns("title"))
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyColumn, s.keyColumn)
}

func Test_Searcher_Search(t *testing.T) {
	sort := searchpager.SortSpec{
		{Field: "price", Order: searchpager.SortDesc},
		{Field: "_id", Order: searchpager.SortAsc},
	}
	from := 5

	tests := []struct {
		name          string
		req           *searchpager.Request
		expectedCount string
		expectedQuery string
		rows          *sqlmock.Rows
		wantIDs       []string
	}{
		{
			name: "first cursor page",
			req: &searchpager.Request{
				Index: "products",
				Query: map[string]any{"term": map[string]any{"category": "mice"}},
				Size:  3,
				Sort:  sort,
			},
			expectedCount: "^SELECT count\\(\\*\\) FROM " + quote + "products" + quote + " WHERE category = " + placeholder + "$",
			expectedQuery: "^SELECT \\* FROM " + quote + "products" + quote + " WHERE category = " + placeholder +
				" ORDER BY price DESC, id ASC LIMIT 3$",
			rows: sqlmock.NewRows([]string{"id", "name", "price"}).
				AddRow(1, "Basic", 30).
				AddRow(2, "Pro", 20),
			wantIDs: []string{"1", "2"},
		},
		{
			name: "keyset page",
			req: &searchpager.Request{
				Index:       "products",
				Size:        3,
				Sort:        sort,
				SearchAfter: []any{int64(20), int64(2)},
			},
			expectedCount: "^SELECT count\\(\\*\\) FROM " + quote + "products" + quote + "$",
			expectedQuery: "^SELECT \\* FROM " + quote + "products" + quote +
				" WHERE \\(price < " + placeholder + " OR \\(price = " + placeholder + " AND id > " + placeholder + "\\)\\)" +
				" ORDER BY price DESC, id ASC LIMIT 3$",
			rows: sqlmock.NewRows([]string{"id", "name", "price"}).
				AddRow(3, "Travel", 10),
			wantIDs: []string{"3"},
		},
		{
			name: "offset page",
			req: &searchpager.Request{
				Index: "products",
				Size:  2,
				From:  &from,
				Sort:  searchpager.SortSpec{{Field: "name", Order: searchpager.SortAsc}},
			},
			expectedCount: "^SELECT count\\(\\*\\) FROM " + quote + "products" + quote + "$",
			expectedQuery: "^SELECT \\* FROM " + quote + "products" + quote + " ORDER BY name ASC LIMIT 2 OFFSET 5$",
			rows:          sqlmock.NewRows([]string{"id", "name", "price"}),
			wantIDs:       []string{},
		},
	}

	for _, mockFn := range _mockFactories {
		for _, tt := range tests {
			dialect, db, dbMock, err := mockFn()
			t.Run(fmt.Sprintf("%s %s", dialect, tt.name), func(t *testing.T) {
				require.NoError(t, err)

				dbMock.ExpectQuery(tt.expectedCount).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
				dbMock.ExpectQuery(tt.expectedQuery).WillReturnRows(tt.rows)

				s, err := New(db)
				require.NoError(t, err)

				res, err := s.Search(context.Background(), tt.req)
				require.NoError(t, err)
				assert.NoError(t, dbMock.ExpectationsWereMet())

				assert.EqualValues(t, 7, res.Meta.Total.Value)
				assert.Equal(t, "eq", res.Meta.Total.Relation)

				ids := make([]string, 0, len(res.Hits))
				for _, hit := range res.Hits {
					ids = append(ids, hit.ID)
					assert.Equal(t, "products", hit.Index)
					assert.Len(t, hit.Sort, len(tt.req.Sort))
				}
				assert.Equal(t, tt.wantIDs, ids)
			})
		}
	}
}

func Test_Searcher_Search_errors(t *testing.T) {
	_, db, dbMock, err := newGORMMySQLMock()
	require.NoError(t, err)

	s, err := New(db)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *searchpager.Request
	}{
		{"nil request", nil},
		{"bad table", &searchpager.Request{Index: "products; drop table x"}},
		{"aggregations", &searchpager.Request{Index: "products", Aggregations: map[string]any{"a": 1}}},
		{"relevance sort", &searchpager.Request{
			Index:       "products",
			Sort:        searchpager.SortSpec{{Field: "_score", Order: searchpager.SortDesc}},
			SearchAfter: []any{1.5},
		}},
		{"match all fields without text columns", &searchpager.Request{
			Index: "products",
			Query: searchpager.TermQuery("mouse"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Search(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrUnsupportedQuery)
		})
	}

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func Test_Searcher_Search_databaseError(t *testing.T) {
	_, db, dbMock, err := newGORMMySQLMock()
	require.NoError(t, err)

	dbMock.ExpectQuery(regexp.QuoteMeta("SELECT count(*)")).WillReturnError(fmt.Errorf("connection reset"))

	s, err := New(db)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), &searchpager.Request{Index: "products", Size: 1})
	require.ErrorContains(t, err, "connection reset")
}

func Test_Searcher_Search_textMatch(t *testing.T) {
	_, db, dbMock, err := newGORMMySQLMock()
	require.NoError(t, err)

	dbMock.ExpectQuery("^SELECT count\\(\\*\\) FROM `products` WHERE \\(title LIKE \\? OR body LIKE \\?\\)$").
		WithArgs("%mouse%", "%mouse%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	dbMock.ExpectQuery("^SELECT \\* FROM `products` WHERE \\(title LIKE \\? OR body LIKE \\?\\) LIMIT 10$").
		WithArgs("%mouse%", "%mouse%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "body", "secret"}).AddRow("a-1", "Mouse", "wireless", "x"))

	s, err := New(db, WithTextColumns("title", "body"))
	require.NoError(t, err)

	res, err := s.Search(context.Background(), &searchpager.Request{
		Index:        "products",
		Query:        searchpager.TermQuery("mouse"),
		Size:         10,
		SourceFields: []string{"id", "title"},
	})
	require.NoError(t, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())

	require.Len(t, res.Hits, 1)
	assert.Equal(t, "a-1", res.Hits[0].ID)
	assert.NotContains(t, res.Hits[0].Source, "secret")
	assert.NotContains(t, res.Hits[0].Source, "body")
	assert.Contains(t, res.Hits[0].Source, "title")
}

func Test_Searcher_Search_fieldMapping(t *testing.T) {
	for _, mockFn := range _mockFactories {
		dialect, db, dbMock, err := mockFn()
		t.Run(dialect, func(t *testing.T) {
			require.NoError(t, err)

			dbMock.ExpectQuery("^SELECT count\\(\\*\\) FROM " + quote + "products" + quote + " WHERE category = " + placeholder + "$").
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
			dbMock.ExpectQuery("^SELECT \\* FROM " + quote + "products" + quote + " WHERE .*category = " + placeholder +
				".*name > " + placeholder + " OR \\(name = " + placeholder + " AND id > " + placeholder + "\\).*" +
				" ORDER BY name ASC, id ASC LIMIT 2$").
				WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category"}).AddRow(4, "Pro", "mice"))

			s, err := New(db, WithFieldMapping(map[string]string{
				"name.keyword":     "name",
				"category.keyword": "category",
			}))
			require.NoError(t, err)

			res, err := s.Search(context.Background(), &searchpager.Request{
				Index: "products",
				Query: map[string]any{"term": map[string]any{"category.keyword": "mice"}},
				Size:  2,
				Sort: searchpager.SortSpec{
					{Field: "name.keyword", Order: searchpager.SortAsc},
					{Field: "_id", Order: searchpager.SortAsc},
				},
				SearchAfter: []any{"Basic", int64(1)},
			})
			require.NoError(t, err)
			assert.NoError(t, dbMock.ExpectationsWereMet())

			require.Len(t, res.Hits, 1)
			assert.Equal(t, "4", res.Hits[0].ID)
			require.Len(t, res.Hits[0].Sort, 2)
			assert.Equal(t, "Pro", fmt.Sprint(res.Hits[0].Sort[0]), "sort values are read from the mapped column")
		})
	}

	_, db, _, err := newGORMMySQLMock()
	require.NoError(t, err)
	_, err = New(db, WithFieldMapping(map[string]string{"name.keyword": "name; drop"}))
	require.Error(t, err)
}
