package gltfutils

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/vrm_spring_bones/skel"
)

func testPose(t *testing.T) *skel.Pose {
	rest := func(y float32) skel.Transform {
		tr := skel.Identity()
		tr.Translation = mgl32.Vec3{0, y, 0}
		return tr
	}
	s, err := skel.New([]skel.Bone{
		{Name: "Hips", Parent: skel.BONE_PARENT_NONE, Rest: rest(1)},
		{Name: "Spine", Parent: 0, Rest: rest(0.2)},
		{Name: "Hair", Parent: 1, Rest: rest(0.3)},
	})
	require.NoError(t, err)
	return skel.NewPose(s)
}

func TestPoseDocument(t *testing.T) {
	p := testPose(t)
	p.SetLocalRotation(2, mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))

	doc := PoseDocument(p, map[int]interface{}{2: map[string]string{"chain": "hair"}})

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, doc))

	var back gltf.Document
	require.NoError(t, gltf.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(&back))

	require.Len(t, back.Nodes, 3)
	assert.Equal(t, []uint32{0}, back.Scenes[0].Nodes)
	assert.Equal(t, "Spine", back.Nodes[1].Name)
	assert.Equal(t, []uint32{2}, back.Nodes[1].Children)
	assert.InDelta(t, 0.2, back.Nodes[1].Translation[1], 1e-6)
	assert.InDelta(t, 0.70710677, back.Nodes[2].Rotation[2], 1e-5)
	assert.InDelta(t, 0.70710677, back.Nodes[2].Rotation[3], 1e-5)
	assert.NotNil(t, back.Nodes[2].Extras)
}

func TestExportBinary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportBinary(&buf, PoseDocument(testPose(t), nil)))
	require.True(t, buf.Len() > 12)
	assert.Equal(t, "glTF", string(buf.Bytes()[:4]))
}
