package lines

// Reorderer is the part of Store the drag controller drives.
type Reorderer interface {
	Reorder(source, target int) Result
}

// DragController tracks one drag gesture over the line list:
// idle -> dragging(source) -> idle.
type DragController struct {
	target   Reorderer
	source   int
	dragging bool
}

// NewDragController creates an idle controller committing drops to target.
func NewDragController(target Reorderer) *DragController {
	return &DragController{target: target}
}

// Start records the dragged line.
func (d *DragController) Start(index int) {
	d.source = index
	d.dragging = true
}

// Over reports whether a drop on index would be accepted.
// Any row other than the dragged one accepts it.
func (d *DragController) Over(index int) bool {
	return d.dragging && index != d.source
}

// Drop commits the move onto index and returns to idle.
// Dropping while idle is rejected.
func (d *DragController) Drop(index int) Result {
	if !d.dragging {
		return ResultRejected
	}
	source := d.source
	d.End()
	return d.target.Reorder(source, index)
}

// End returns to idle without committing, whether or not a drop happened.
func (d *DragController) End() {
	d.dragging = false
	d.source = 0
}

// Dragging returns the dragged index, if any.
func (d *DragController) Dragging() (int, bool) {
	return d.source, d.dragging
}
