// Package deck holds the pure operations on a presentation document.
// Every operation returns a new document and leaves its input untouched.
package deck

import (
	"errors"
	"fmt"

	"slidesync/internal/geometry"
	"slidesync/internal/presentation/model"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrLastSlide is returned by RemoveSlide when only one slide is left.
	ErrLastSlide = errors.New("cannot remove the last slide")
)

// IsNoOp reports whether err means the operation was refused without changing anything.
func IsNoOp(err error) bool {
	return errors.Is(err, ErrLastSlide)
}

// New returns a presentation with the given title and one empty slide.
func New(title string) model.Presentation {
	return model.Presentation{
		Title:  title,
		Slides: []model.Slide{{Order: 0, TextBlocks: []model.TextBlock{}}},
	}
}

// Clone deep-copies doc.
func Clone(doc model.Presentation) model.Presentation {
	out := doc
	out.Slides = CloneSlides(doc.Slides)
	return out
}

// CloneSlides deep-copies a slide sequence. A nil input yields an empty slice.
func CloneSlides(slides []model.Slide) []model.Slide {
	out := make([]model.Slide, len(slides))
	for i, s := range slides {
		out[i] = model.Slide{Order: s.Order, TextBlocks: make([]model.TextBlock, len(s.TextBlocks))}
		copy(out[i].TextBlocks, s.TextBlocks)
	}
	return out
}

// Equal compares two documents field by field.
func Equal(a, b model.Presentation) bool {
	if a.ID != b.ID || a.Title != b.Title || len(a.Slides) != len(b.Slides) {
		return false
	}
	for i := range a.Slides {
		sa, sb := a.Slides[i], b.Slides[i]
		if sa.Order != sb.Order || len(sa.TextBlocks) != len(sb.TextBlocks) {
			return false
		}
		for j := range sa.TextBlocks {
			if sa.TextBlocks[j] != sb.TextBlocks[j] {
				return false
			}
		}
	}
	return true
}

// Renumber sets every slide's Order to its position.
func Renumber(doc model.Presentation) model.Presentation {
	out := Clone(doc)
	for i := range out.Slides {
		out.Slides[i].Order = i
	}
	return out
}

func SetTitle(doc model.Presentation, title string) model.Presentation {
	out := Clone(doc)
	out.Title = title
	return out
}

// AddSlide appends an empty slide.
func AddSlide(doc model.Presentation) model.Presentation {
	out := Clone(doc)
	out.Slides = append(out.Slides, model.Slide{Order: len(out.Slides), TextBlocks: []model.TextBlock{}})
	return out
}

// RemoveSlide drops the slide at index. Order is left for the caller to re-derive.
func RemoveSlide(doc model.Presentation, index int) (model.Presentation, error) {
	out := Clone(doc)
	if err := checkSlide(out, index); err != nil {
		return out, err
	}
	if len(out.Slides) == 1 {
		return out, ErrLastSlide
	}
	out.Slides = append(out.Slides[:index], out.Slides[index+1:]...)
	return out, nil
}

// ReorderSlides moves the slide at from so it ends up at to.
func ReorderSlides(doc model.Presentation, from, to int) (model.Presentation, error) {
	out := Clone(doc)
	if err := checkSlide(out, from); err != nil {
		return out, err
	}
	if err := checkSlide(out, to); err != nil {
		return out, err
	}
	if from == to {
		return out, nil
	}
	moved := out.Slides[from]
	rest := append(out.Slides[:from:from], out.Slides[from+1:]...)
	slides := make([]model.Slide, 0, len(out.Slides))
	slides = append(slides, rest[:to]...)
	slides = append(slides, moved)
	slides = append(slides, rest[to:]...)
	out.Slides = slides
	return out, nil
}

// AddTextBlock appends an empty block at the default placement for the measured container.
func AddTextBlock(doc model.Presentation, slideIndex int, size geometry.Size) (model.Presentation, error) {
	out := Clone(doc)
	if err := checkSlide(out, slideIndex); err != nil {
		return out, err
	}
	p := geometry.DefaultPlacement(size)
	s := &out.Slides[slideIndex]
	s.TextBlocks = append(s.TextBlocks, model.TextBlock{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height})
	return out, nil
}

func RemoveTextBlock(doc model.Presentation, slideIndex, blockIndex int) (model.Presentation, error) {
	out := Clone(doc)
	if err := checkBlock(out, slideIndex, blockIndex); err != nil {
		return out, err
	}
	s := &out.Slides[slideIndex]
	s.TextBlocks = append(s.TextBlocks[:blockIndex], s.TextBlocks[blockIndex+1:]...)
	return out, nil
}

func UpdateTextBlockContent(doc model.Presentation, slideIndex, blockIndex int, content string) (model.Presentation, error) {
	out := Clone(doc)
	if err := checkBlock(out, slideIndex, blockIndex); err != nil {
		return out, err
	}
	out.Slides[slideIndex].TextBlocks[blockIndex].Content = content
	return out, nil
}

// MoveTextBlock sets the block position. x and y are already in percent.
func MoveTextBlock(doc model.Presentation, slideIndex, blockIndex int, x, y float64) (model.Presentation, error) {
	out := Clone(doc)
	if err := checkBlock(out, slideIndex, blockIndex); err != nil {
		return out, err
	}
	b := &out.Slides[slideIndex].TextBlocks[blockIndex]
	b.X, b.Y = x, y
	return out, nil
}

// ResizeTextBlock sets position and size, all in percent.
func ResizeTextBlock(doc model.Presentation, slideIndex, blockIndex int, x, y, width, height float64) (model.Presentation, error) {
	out := Clone(doc)
	if err := checkBlock(out, slideIndex, blockIndex); err != nil {
		return out, err
	}
	b := &out.Slides[slideIndex].TextBlocks[blockIndex]
	b.X, b.Y, b.Width, b.Height = x, y, width, height
	return out, nil
}

func checkSlide(doc model.Presentation, i int) error {
	if i < 0 || i >= len(doc.Slides) {
		return fmt.Errorf("%w: slide %d of %d", ErrIndexOutOfRange, i, len(doc.Slides))
	}
	return nil
}

func checkBlock(doc model.Presentation, slideIndex, blockIndex int) error {
	if err := checkSlide(doc, slideIndex); err != nil {
		return err
	}
	n := len(doc.Slides[slideIndex].TextBlocks)
	if blockIndex < 0 || blockIndex >= n {
		return fmt.Errorf("%w: block %d of %d on slide %d", ErrIndexOutOfRange, blockIndex, n, slideIndex)
	}
	return nil
}
