// Package cursor carries seq-keyed pagination state for journal history
// queries.
//
// A cursor names the committed sequence a previous page stopped at and
// the side of it the next query reads. Reverse marks a previous-page
// fetch: the store reads the nearest rows on that side and flips them
// back into display order before returning.
package cursor

// Direction tells a history query which side of the cursor to read.
type Direction string

const (
	// Forward reads rows with seq greater than the cursor.
	Forward Direction = "fwd"
	// Backward reads rows with seq less than the cursor.
	Backward Direction = "bwd"
)

// Cursor is the resume point of a paginated history query. The zero
// value reads the first page.
type Cursor struct {
	Seq     uint64
	Dir     Direction
	Reverse bool
}

// Zero reports whether the cursor is the first-page sentinel.
func (c Cursor) Zero() bool {
	return c.Seq == 0
}

// NextPage returns the cursor that continues past lastSeq in the current
// display order.
func NextPage(lastSeq uint64, descending bool) Cursor {
	dir := Forward
	if descending {
		dir = Backward
	}
	return Cursor{Seq: lastSeq, Dir: dir}
}

// PrevPage returns the cursor that backs up before firstSeq in the
// current display order.
func PrevPage(firstSeq uint64, descending bool) Cursor {
	dir := Backward
	if descending {
		dir = Forward
	}
	return Cursor{Seq: firstSeq, Dir: dir, Reverse: true}
}
