package chat

import "sync"

// Draft is the unsent composer state of one conversation view.
type Draft struct {
	mu    sync.Mutex
	text  string
	image []byte
}

func (d *Draft) SetText(text string) {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
}

func (d *Draft) SetImage(image []byte) {
	d.mu.Lock()
	d.image = image
	d.mu.Unlock()
}

// Take returns the draft contents and clears it.
func (d *Draft) Take() (string, []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	text, image := d.text, d.image
	d.text, d.image = "", nil
	return text, image
}
