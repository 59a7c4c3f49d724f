package querycache

import (
	"net/url"
	"strconv"

	"trash4cash/internal/resource/models"
)

// Key identifies a cached query. A detail key carries an ID; a list key
// carries the pagination and filter parameters. Equal parameters produce
// equal keys. An owner key holds every record of one user.
type Key struct {
	Resource models.Kind
	ID       string
	Owner    string
	Page     int
	Limit    int
	Status   string
	Search   string
	Sort     string
}

// ListKey builds the key of a list query.
func ListKey(kind models.Kind, page, limit int, status, search string) Key {
	return Key{Resource: kind, Page: page, Limit: limit, Status: status, Search: search}
}

// DetailKey builds the key of a single-record query.
func DetailKey(kind models.Kind, id string) Key {
	return Key{Resource: kind, ID: id}
}

// OwnerKey builds the key of the unpaged query for the records of userID.
func OwnerKey(kind models.Kind, userID string) Key {
	return Key{Resource: kind, Owner: userID}
}

// WithSort returns a copy of k with a sort order.
func (k Key) WithSort(sort string) Key {
	k.Sort = sort
	return k
}

func (k Key) IsDetail() bool {
	return k.ID != ""
}

// String renders k as a relative URL. Field values are query-escaped, so
// distinct keys never share a string.
func (k Key) String() string {
	if k.IsDetail() {
		return k.Resource.String() + "/" + url.PathEscape(k.ID)
	}
	if k.Owner != "" {
		return k.Resource.String() + "/users/" + url.PathEscape(k.Owner)
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(k.Page))
	q.Set("limit", strconv.Itoa(k.Limit))
	if k.Status != "" {
		q.Set("status", k.Status)
	}
	if k.Search != "" {
		q.Set("search", k.Search)
	}
	if k.Sort != "" {
		q.Set("sort", k.Sort)
	}
	return k.Resource.String() + "?" + q.Encode()
}
