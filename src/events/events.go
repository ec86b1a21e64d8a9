// Package events decodes gateway dispatch payloads into typed models. All
// decoders are stateless and operate on the raw "d" document of one frame.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/skua-io/skua/src/errs"
	"github.com/skua-io/skua/src/structs"
)

// Kind classifies a dispatch by its "t" name.
type Kind int

const (
	KindUnknown Kind = iota
	KindReady
	KindGuildCreate
	KindMessageCreate
	KindThreadCreate
	KindThreadUpdate
	KindThreadDelete
	KindThreadListSync
	KindThreadMemberUpdate
	KindThreadMembersUpdate
)

// KindFromName maps a dispatch name to its Kind. Unrecognized names map to
// KindUnknown rather than an error so callers can pass unknown dispatches
// through untouched.
func KindFromName(name string) Kind {
	switch name {
	case "READY":
		return KindReady
	case "GUILD_CREATE":
		return KindGuildCreate
	case "MESSAGE_CREATE":
		return KindMessageCreate
	case "THREAD_CREATE":
		return KindThreadCreate
	case "THREAD_UPDATE":
		return KindThreadUpdate
	case "THREAD_DELETE":
		return KindThreadDelete
	case "THREAD_LIST_SYNC":
		return KindThreadListSync
	case "THREAD_MEMBER_UPDATE":
		return KindThreadMemberUpdate
	case "THREAD_MEMBERS_UPDATE":
		return KindThreadMembersUpdate
	}
	return KindUnknown
}

// IsThreadEvent reports whether the kind is one of the THREAD_* dispatches.
func (k Kind) IsThreadEvent() bool {
	switch k {
	case KindThreadCreate, KindThreadUpdate, KindThreadDelete,
		KindThreadListSync, KindThreadMemberUpdate, KindThreadMembersUpdate:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindReady:
		return "READY"
	case KindGuildCreate:
		return "GUILD_CREATE"
	case KindMessageCreate:
		return "MESSAGE_CREATE"
	case KindThreadCreate:
		return "THREAD_CREATE"
	case KindThreadUpdate:
		return "THREAD_UPDATE"
	case KindThreadDelete:
		return "THREAD_DELETE"
	case KindThreadListSync:
		return "THREAD_LIST_SYNC"
	case KindThreadMemberUpdate:
		return "THREAD_MEMBER_UPDATE"
	case KindThreadMembersUpdate:
		return "THREAD_MEMBERS_UPDATE"
	}
	return "UNKNOWN"
}

// ThreadMembersUpdate is the payload of THREAD_MEMBERS_UPDATE. Members added
// in the same update arrive either under "members" or "added_members"
// depending on the gateway revision; both land in Members here.
type ThreadMembersUpdate struct {
	GuildID          structs.Optional[structs.Snowflake]
	ThreadID         structs.Optional[structs.Snowflake]
	MemberCount      int
	Members          []structs.ThreadMember
	RemovedMemberIDs []structs.Snowflake
}

// ThreadListSync is the payload of THREAD_LIST_SYNC. ChannelIDs is the set of
// parent channels whose threads were synced; empty means the whole guild.
type ThreadListSync struct {
	GuildID    structs.Optional[structs.Snowflake]
	ChannelIDs []structs.Snowflake
	Threads    []structs.ThreadChannel
	Members    []structs.ThreadMember
}

func decodeInto(data []byte, out any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty dispatch payload", errs.ErrFormat)
	}
	if !json.Valid(data) {
		return fmt.Errorf("%w: dispatch payload is not valid json", errs.ErrJSON)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s", errs.ErrFormat, err)
	}
	return nil
}

// ParseThreadChannel decodes the payload of THREAD_CREATE, THREAD_UPDATE and
// THREAD_DELETE. The thread id is required.
func ParseThreadChannel(data []byte) (structs.ThreadChannel, error) {
	var ch structs.ThreadChannel
	if err := decodeInto(data, &ch); err != nil {
		return structs.ThreadChannel{}, err
	}
	if !ch.ID.IsValid() {
		return structs.ThreadChannel{}, fmt.Errorf("%w: thread channel missing id", errs.ErrFormat)
	}
	return ch, nil
}

// ParseThreadMember decodes the payload of THREAD_MEMBER_UPDATE.
func ParseThreadMember(data []byte) (structs.ThreadMember, error) {
	var m structs.ThreadMember
	if err := decodeInto(data, &m); err != nil {
		return structs.ThreadMember{}, err
	}
	return m, nil
}

// ParseThreadMembersUpdate decodes the payload of THREAD_MEMBERS_UPDATE.
func ParseThreadMembersUpdate(data []byte) (ThreadMembersUpdate, error) {
	var raw struct {
		GuildID      structs.Optional[structs.Snowflake] `json:"guild_id"`
		ID           structs.Optional[structs.Snowflake] `json:"id"`
		MemberCount  int                                 `json:"member_count"`
		Members      []structs.ThreadMember              `json:"members"`
		AddedMembers []structs.ThreadMember              `json:"added_members"`
		RemovedIDs   []structs.Snowflake                 `json:"removed_member_ids"`
	}
	if err := decodeInto(data, &raw); err != nil {
		return ThreadMembersUpdate{}, err
	}
	out := ThreadMembersUpdate{
		GuildID:          raw.GuildID,
		ThreadID:         raw.ID,
		MemberCount:      raw.MemberCount,
		Members:          raw.Members,
		RemovedMemberIDs: raw.RemovedIDs,
	}
	if out.Members == nil {
		out.Members = raw.AddedMembers
	}
	for _, id := range out.RemovedMemberIDs {
		if !id.IsValid() {
			return ThreadMembersUpdate{}, fmt.Errorf("%w: removed member id %q is not a snowflake", errs.ErrFormat, id)
		}
	}
	return out, nil
}

// ParseThreadListSync decodes the payload of THREAD_LIST_SYNC.
func ParseThreadListSync(data []byte) (ThreadListSync, error) {
	var raw struct {
		GuildID    structs.Optional[structs.Snowflake] `json:"guild_id"`
		ChannelIDs []structs.Snowflake                 `json:"channel_ids"`
		Threads    []structs.ThreadChannel             `json:"threads"`
		Members    []structs.ThreadMember              `json:"members"`
	}
	if err := decodeInto(data, &raw); err != nil {
		return ThreadListSync{}, err
	}
	for _, id := range raw.ChannelIDs {
		if !id.IsValid() {
			return ThreadListSync{}, fmt.Errorf("%w: channel id %q is not a snowflake", errs.ErrFormat, id)
		}
	}
	for _, th := range raw.Threads {
		if !th.ID.IsValid() {
			return ThreadListSync{}, fmt.Errorf("%w: synced thread missing id", errs.ErrFormat)
		}
	}
	return ThreadListSync{
		GuildID:    raw.GuildID,
		ChannelIDs: raw.ChannelIDs,
		Threads:    raw.Threads,
		Members:    raw.Members,
	}, nil
}
