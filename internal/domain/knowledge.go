package domain

import "time"

// KnowledgeEntry is one confirmed issue→solution pair for a specific machine.
// Entries are immutable and form an append-only sequence per serial number.
// The knowledge base has a lifecycle independent of the transcript: clearing
// a machine's history does not touch its knowledge base.
type KnowledgeEntry struct {
	ID           string    `json:"id"`
	SerialNumber string    `json:"serialNumber"`
	Issue        string    `json:"issue"`
	Solution     string    `json:"solution"`
	RecordedAt   time.Time `json:"recordedAt"`
}
