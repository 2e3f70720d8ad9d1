package model

// ProgressItemType names the kinds of trackable course content.
type ProgressItemType string

const (
	ProgressItemVideo    ProgressItemType = "video"
	ProgressItemMaterial ProgressItemType = "material"
	ProgressItemExam     ProgressItemType = "exam"
)

// ValidProgressItemType reports whether t is one of the known item types.
func ValidProgressItemType(t ProgressItemType) bool {
	switch t {
	case ProgressItemVideo, ProgressItemMaterial, ProgressItemExam:
		return true
	}
	return false
}

// CourseProgress holds the IDs of completed items for one learner in one course.
type CourseProgress struct {
	Videos    []string `json:"videos"`
	Materials []string `json:"materials"`
	Exams     []string `json:"exams"`
}

// CompletedCount returns the total number of completed items.
func (p *CourseProgress) CompletedCount() int {
	return len(p.Videos) + len(p.Materials) + len(p.Exams)
}

// ToggleProgressRequest is the payload for flipping an item's completion.
type ToggleProgressRequest struct {
	ItemType ProgressItemType `json:"item_type" binding:"required,oneof=video material exam"`
	ItemID   string           `json:"item_id" binding:"required,min=1,max=64"`
}
