package structs

// ThreadMetadata is the thread-specific portion of a channel object.
type ThreadMetadata struct {
	Archived            bool           `json:"archived"`
	AutoArchiveDuration int            `json:"auto_archive_duration"`
	ArchiveTimestamp    string         `json:"archive_timestamp"`
	Locked              bool           `json:"locked"`
	Invitable           Optional[bool] `json:"invitable,omitempty"`
}

// ThreadMember describes one member of a thread. The id and user_id fields
// are omitted inside GUILD_CREATE payloads, hence Optional.
type ThreadMember struct {
	ID            Optional[Snowflake] `json:"id,omitempty"`
	UserID        Optional[Snowflake] `json:"user_id,omitempty"`
	GuildID       Optional[Snowflake] `json:"guild_id,omitempty"`
	JoinTimestamp string              `json:"join_timestamp"`
	Flags         int                 `json:"flags"`
}

// ThreadChannel is the subset of the channel object carried by THREAD_*
// dispatches. parent_id is both optional and nullable.
type ThreadChannel struct {
	ID            Snowflake                `json:"id"`
	Type          int                      `json:"type"`
	GuildID       Optional[Snowflake]      `json:"guild_id,omitempty"`
	Name          Optional[string]         `json:"name,omitempty"`
	ParentID      Optional[Snowflake]      `json:"parent_id,omitempty"`
	OwnerID       Optional[Snowflake]      `json:"owner_id,omitempty"`
	MessageCount  Optional[int]            `json:"message_count,omitempty"`
	MemberCount   Optional[int]            `json:"member_count,omitempty"`
	Metadata      Optional[ThreadMetadata] `json:"thread_metadata,omitempty"`
	Member        Optional[ThreadMember]   `json:"member,omitempty"`
	NewlyCreated  Optional[bool]           `json:"newly_created,omitempty"`
	TotalMessages Optional[int]            `json:"total_message_sent,omitempty"`
}
