// Package models defines the wire types exchanged between the agents, their
// chat peers and the structured-output extractor.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════
// ── Chat Protocol ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ContentType tags one item of a chat message.
type ContentType string

const (
	ContentText         ContentType = "text"
	ContentStartSession ContentType = "start-session"
	ContentEndSession   ContentType = "end-session"
)

// Content is one item of a chat message. Text is only set for ContentText.
type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
}

// ChatMessage is the unit of conversation between a user and an agent.
// Sender is the address replies are delivered to.
type ChatMessage struct {
	Timestamp time.Time `json:"timestamp"`
	MsgID     string    `json:"msg_id"`
	SessionID string    `json:"session_id,omitempty"`
	Sender    string    `json:"sender,omitempty"`
	Content   []Content `json:"content"`
}

// NewTextMessage builds an outbound text reply, optionally closing the session.
func NewTextMessage(text string, endSession bool) ChatMessage {
	content := []Content{{Type: ContentText, Text: text}}
	if endSession {
		content = append(content, Content{Type: ContentEndSession})
	}
	return ChatMessage{
		Timestamp: time.Now().UTC(),
		MsgID:     uuid.New().String(),
		Content:   content,
	}
}

// Text concatenates every text item of the message.
func (m ChatMessage) Text() string {
	var text string
	for _, c := range m.Content {
		if c.Type == ContentText {
			text += c.Text
		}
	}
	return text
}

// ChatAcknowledgement confirms receipt of a ChatMessage.
type ChatAcknowledgement struct {
	Timestamp         time.Time `json:"timestamp"`
	AcknowledgedMsgID string    `json:"acknowledged_msg_id"`
}

// NewAcknowledgement acknowledges msg at the current time.
func NewAcknowledgement(msg ChatMessage) ChatAcknowledgement {
	return ChatAcknowledgement{Timestamp: time.Now().UTC(), AcknowledgedMsgID: msg.MsgID}
}

// ══════════════════════════════════════════════════════════════
// ── Structured Output ────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// StructuredOutputPrompt asks the extractor to fill OutputSchema from Prompt.
type StructuredOutputPrompt struct {
	Prompt       string                 `json:"prompt"`
	OutputSchema map[string]interface{} `json:"output_schema"`
}

// StructuredOutputResponse carries the extractor's object. Output is kept raw
// so the agents can inspect its loose shape before trusting it.
type StructuredOutputResponse struct {
	Output json.RawMessage `json:"output"`
}

// ══════════════════════════════════════════════════════════════
// ── Agent Card ───────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// AgentCard describes an agent's capabilities and endpoints to callers.
type AgentCard struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	URL          string            `json:"url"`
	Version      string            `json:"version,omitempty"`
	Provider     AgentCardProvider `json:"provider,omitempty"`
	Capabilities AgentCapabilities `json:"capabilities"`
	Skills       []AgentSkill      `json:"skills,omitempty"`
	InputModes   []string          `json:"defaultInputModes,omitempty"`
	OutputModes  []string          `json:"defaultOutputModes,omitempty"`
	Protocols    []string          `json:"protocols,omitempty"`
}

// AgentCardProvider identifies who operates the agent.
type AgentCardProvider struct {
	Organization string `json:"organization,omitempty"`
	URL          string `json:"url,omitempty"`
}

// AgentCapabilities describes what the agent supports.
type AgentCapabilities struct {
	Sessions         bool `json:"sessions,omitempty"`
	StructuredOutput bool `json:"structuredOutput,omitempty"`
}

// AgentSkill describes one capability the agent offers.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}
