package domain

// DriverContext is a read-only snapshot of a known driver's record.
// Attributes holds the full normalized record and is fed verbatim into prompts.
type DriverContext struct {
	DriverID   string
	Name       string
	Phones     []string
	Attributes map[string]any
}

// Attribute returns a record field, or nil when absent.
func (c *DriverContext) Attribute(key string) any {
	if c == nil || c.Attributes == nil {
		return nil
	}
	return c.Attributes[key]
}
