package models

import "time"

// Guest is one WhatsApp outreach record: who received an invitation link and
// what they last replied. The spreadsheet stays the source of truth for RSVPs.
type Guest struct {
	PhoneNumber string         `json:"phone_number"`
	Name        string         `json:"name"`
	Token       string         `json:"token,omitempty"`
	Status      OutreachStatus `json:"status"`
	InvitedDate time.Time      `json:"invited_date"`
	ReplyDate   time.Time      `json:"reply_date,omitempty"`
	LastReply   string         `json:"last_reply,omitempty"`
}

// OutreachStatus tracks where a guest is in the WhatsApp conversation.
type OutreachStatus string

const (
	OutreachPending   OutreachStatus = "pending"
	OutreachAccepted  OutreachStatus = "accepted"
	OutreachDeclined  OutreachStatus = "declined"
	OutreachConfirmed OutreachStatus = "already_confirmed"
	OutreachClosed    OutreachStatus = "closed"
)

// InvitationRequest represents a request to send an invitation link
type InvitationRequest struct {
	PhoneNumber string
	Name        string
	Token       string
}
