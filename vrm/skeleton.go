package vrm

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/vrm_spring_bones/skel"
	"github.com/mogaika/vrm_spring_bones/utils"
)

var identityMatrix = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// Skeleton turns every glTF node into a bone. Bone index equals node index.
// Unnamed nodes become "node_<index>", repeated names get "_<index>" suffix.
func Skeleton(doc *gltf.Document) (*skel.Skeleton, error) {
	bones := make([]skel.Bone, len(doc.Nodes))
	for i := range bones {
		bones[i].Parent = skel.BONE_PARENT_NONE
	}

	names := make(map[string]struct{}, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if n == nil {
			return nil, errors.Wrapf(skel.ErrInvalidHierarchy, "node %d is null", i)
		}
		name := n.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", i)
		}
		if _, dup := names[name]; dup {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		names[name] = struct{}{}

		bones[i].Name = name
		bones[i].Rest = nodeTransform(n)

		for _, child := range n.Children {
			if int(child) >= len(bones) {
				return nil, errors.Wrapf(skel.ErrInvalidHierarchy, "node %d has invalid child %d", i, child)
			}
			if bones[child].Parent != skel.BONE_PARENT_NONE {
				return nil, errors.Wrapf(skel.ErrInvalidHierarchy, "node %d has two parents", child)
			}
			bones[child].Parent = i
		}
	}
	return skel.New(bones)
}

func nodeTransform(n *gltf.Node) skel.Transform {
	if n.Matrix != identityMatrix && n.Matrix != [16]float32{} {
		return skel.FromMat4(mgl32.Mat4(n.Matrix))
	}
	t := skel.Identity()
	t.Translation = mgl32.Vec3(n.Translation)
	t.Rotation = utils.QuatFromXYZW(n.Rotation)
	if n.Scale != [3]float32{} {
		t.Scale = mgl32.Vec3(n.Scale)
	}
	return t
}
