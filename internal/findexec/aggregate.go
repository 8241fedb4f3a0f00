package findexec

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/rs/zerolog"
)

// Aggregator groups matched files by owner.
type Aggregator struct {
	// Users resolves owner ids to usernames.
	Users UserResolver
	// KeepUnresolved keeps groups without a username, labelled by their decimal uid.
	// When false such groups are dropped from the report.
	KeepUnresolved bool

	log zerolog.Logger
}

// NewAggregator creates an aggregator resolving names through users.
func NewAggregator(users UserResolver, keepUnresolved bool, log zerolog.Logger) *Aggregator {
	return &Aggregator{Users: users, KeepUnresolved: keepUnresolved, log: log}
}

// Aggregate buckets entries by owner id and returns the groups ordered by
// descending file count. Groups with equal counts keep the order in which
// their owner was first seen. The second return value lists owner ids that
// could not be resolved to a username.
func (a *Aggregator) Aggregate(entries []FileEntry) ([]OwnerGroup, []uint32) {
	var order []uint32

	buckets := make(map[uint32]*OwnerGroup)

	for _, entry := range entries {
		group, ok := buckets[entry.UID]
		if !ok {
			group = &OwnerGroup{UID: entry.UID}
			buckets[entry.UID] = group
			order = append(order, entry.UID)
		}

		group.Files = append(group.Files, entry.Path)
		group.Amount++
		group.Size += entry.Size
	}

	groups := make([]OwnerGroup, 0, len(order))

	var unresolved []uint32

	for _, uid := range order {
		group := buckets[uid]

		var (
			name string
			ok   bool
		)
		if a.Users != nil {
			name, ok = a.Users.Username(uid)
		}

		switch {
		case ok:
			group.Username = name
			group.Resolved = true
		case a.KeepUnresolved:
			group.Username = strconv.FormatUint(uint64(uid), 10)
			unresolved = append(unresolved, uid)
		default:
			a.log.Warn().Uint32("uid", uid).Int("files", group.Amount).Msg("owner has no username, dropping group")
			unresolved = append(unresolved, uid)

			continue
		}

		groups = append(groups, *group)
	}

	slices.SortStableFunc(groups, func(x, y OwnerGroup) int {
		return cmp.Compare(y.Amount, x.Amount)
	})

	return groups, unresolved
}
