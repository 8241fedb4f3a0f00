package findexec

import (
	"os/user"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultUserCacheSize bounds each OSUsers lookup cache.
const DefaultUserCacheSize = 256

// UserResolver maps a numeric owner id to a username.
type UserResolver interface {
	Username(uid uint32) (string, bool)
}

// UIDResolver maps a username to its numeric id.
type UIDResolver interface {
	UID(name string) (uint32, bool)
}

// lookup is a cached answer, including negative ones.
type lookup[T any] struct {
	value T
	ok    bool
}

// OSUsers resolves ids through the operating system user database.
type OSUsers struct {
	byUID  *lru.Cache[uint32, lookup[string]]
	byName *lru.Cache[string, lookup[uint32]]
}

// NewOSUsers creates a resolver whose caches hold up to size answers each.
func NewOSUsers(size int) (*OSUsers, error) {
	if size <= 0 {
		size = DefaultUserCacheSize
	}

	byUID, err := lru.New[uint32, lookup[string]](size)
	if err != nil {
		return nil, err
	}

	byName, err := lru.New[string, lookup[uint32]](size)
	if err != nil {
		return nil, err
	}

	return &OSUsers{byUID: byUID, byName: byName}, nil
}

// Username returns the login name for uid.
func (u *OSUsers) Username(uid uint32) (string, bool) {
	if cached, ok := u.byUID.Get(uid); ok {
		return cached.value, cached.ok
	}

	var answer lookup[string]
	if usr, err := user.LookupId(strconv.FormatUint(uint64(uid), 10)); err == nil && usr.Username != "" {
		answer = lookup[string]{value: usr.Username, ok: true}
	}

	u.byUID.Add(uid, answer)

	return answer.value, answer.ok
}

// UID returns the numeric id for a login name.
func (u *OSUsers) UID(name string) (uint32, bool) {
	if cached, ok := u.byName.Get(name); ok {
		return cached.value, cached.ok
	}

	var answer lookup[uint32]
	if usr, err := user.Lookup(name); err == nil {
		if id, err := strconv.ParseUint(usr.Uid, 10, 32); err == nil {
			answer = lookup[uint32]{value: uint32(id), ok: true}
		}
	}

	u.byName.Add(name, answer)

	return answer.value, answer.ok
}

// StaticUsers is a fixed uid to username table.
type StaticUsers map[uint32]string

// Username looks uid up in the table.
func (s StaticUsers) Username(uid uint32) (string, bool) {
	name, ok := s[uid]

	return name, ok
}

// UID scans the table for name.
func (s StaticUsers) UID(name string) (uint32, bool) {
	for id, n := range s {
		if n == name {
			return id, true
		}
	}

	return 0, false
}
