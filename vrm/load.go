package vrm

import (
	"io"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// Load opens .vrm, .glb or .gltf file
func Load(path string) (*gltf.Document, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %q", path)
	}
	return doc, nil
}

func Decode(r io.Reader) (*gltf.Document, error) {
	doc := &gltf.Document{}
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode")
	}
	return doc, nil
}
