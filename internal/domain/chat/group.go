package chat

import "time"

type Community struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	CreatorID int64     `gorm:"column:creator_id;not null;index" json:"creator_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Community) TableName() string { return "communities" }

// CommunityAdmin grants moderation rights over every chat group of the community.
type CommunityAdmin struct {
	CommunityID int64     `gorm:"primaryKey;autoIncrement:false" json:"community_id"`
	UserID      int64     `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (CommunityAdmin) TableName() string { return "community_admins" }

type ChatGroup struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CommunityID int64     `gorm:"column:community_id;not null;index" json:"community_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (ChatGroup) TableName() string { return "chat_groups" }

// GroupMember exists iff the user is a member of the group.
type GroupMember struct {
	ChatGroupID int64     `gorm:"primaryKey;autoIncrement:false" json:"chat_group_id"`
	UserID      int64     `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	JoinedAt    time.Time `gorm:"not null;autoCreateTime" json:"joined_at"`
}

func (GroupMember) TableName() string { return "chat_group_members" }
