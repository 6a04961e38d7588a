package farmhand

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxRecords = 20

// CycleRecord captures what happened in a single farmhand cycle.
type CycleRecord struct {
	Tick      uint64 `json:"tick"`
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Success   bool   `json:"success"`
	Money     int    `json:"money"`
	Level     int    `json:"level"`
	Condition string `json:"condition"`
	Rationale string `json:"rationale,omitempty"`
}

// CycleMemory manages a ring of recent cycle records.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`
}

// LoadMemory reads the memory file from disk. Returns empty memory if not found.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("farmhand memory corrupted, starting fresh", "error", err)
		return &CycleMemory{}
	}
	return &mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save(path string) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal farmhand memory", "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Error("failed to write farmhand memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Last returns the newest record.
func (m *CycleMemory) Last() (CycleRecord, bool) {
	if m == nil || len(m.Records) == 0 {
		return CycleRecord{}, false
	}
	return m.Records[len(m.Records)-1], true
}

// Summary counts actions over the remembered cycles, e.g. "harvest=3 plant=2".
func (m *CycleMemory) Summary() string {
	counts := map[string]int{}
	var order []string
	for _, r := range m.Records {
		if counts[r.Action] == 0 {
			order = append(order, r.Action)
		}
		counts[r.Action]++
	}
	parts := make([]string, len(order))
	for i, a := range order {
		parts[i] = fmt.Sprintf("%s=%d", a, counts[a])
	}
	return strings.Join(parts, " ")
}
