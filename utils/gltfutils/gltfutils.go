package gltfutils

import (
	"io"

	"github.com/qmuntal/gltf"

	"github.com/mogaika/vrm_spring_bones/skel"
	"github.com/mogaika/vrm_spring_bones/utils"
)

// PoseDocument builds node hierarchy with local transforms of pose.
// extras are attached to nodes by bone index.
func PoseDocument(p *skel.Pose, extras map[int]interface{}) *gltf.Document {
	doc := gltf.NewDocument()
	s := p.Skeleton()

	doc.Nodes = make([]*gltf.Node, s.Len())
	for i := 0; i < s.Len(); i++ {
		local := p.Local(i)
		doc.Nodes[i] = &gltf.Node{
			Name:        s.Name(i),
			Translation: local.Translation,
			Rotation:    utils.QuatToXYZW(local.Rotation),
			Scale:       local.Scale,
			Extras:      extras[i],
		}
		for _, child := range s.Children(i) {
			doc.Nodes[i].Children = append(doc.Nodes[i].Children, uint32(child))
		}
	}
	for _, i := range s.Order() {
		if s.Parent(i) == skel.BONE_PARENT_NONE {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(i))
		}
	}
	return doc
}

func ExportBinary(w io.Writer, doc *gltf.Document) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}

func ExportJSON(w io.Writer, doc *gltf.Document) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = false
	return encoder.Encode(doc)
}
