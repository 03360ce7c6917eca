package historytree

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StateHistory/condition"
	"StateHistory/interval"
	"StateHistory/types"
)

func testConfig() Config {
	return Config{BlockSize: 1024, MaxChildren: 4, Extension: QuarkExtension}
}

func TestNodeKeepsStorageOrder(t *testing.T) {
	n := newNode(testConfig(), types.NodeTypeLeaf, 0, types.NoParent, 0)
	for _, iv := range []interval.Interval{str(0, 30, 2, "c"), str(0, 10, 5, "a"), str(5, 10, 1, "b"), str(0, 10, 1, "z")} {
		require.NoError(t, n.add(iv))
	}

	got := n.Intervals()
	require.Len(t, got, 4)
	assert.Equal(t, "z", mustStr(t, got[0]))
	assert.Equal(t, "a", mustStr(t, got[1]))
	assert.Equal(t, "b", mustStr(t, got[2]))
	assert.Equal(t, "c", mustStr(t, got[3]))

	minQ, maxQ := n.QuarkBounds()
	assert.Equal(t, int32(1), minQ)
	assert.Equal(t, int32(5), maxQ)
}

func mustStr(t *testing.T, iv interval.Interval) string {
	t.Helper()
	s, ok := iv.Value.Str()
	require.True(t, ok)
	return s
}

func TestNodeCloseComputesEnd(t *testing.T) {
	n := newNode(testConfig(), types.NodeTypeLeaf, 3, 1, 100)
	ev, err := n.close(0)
	require.NoError(t, err)
	assert.Equal(t, int64(100), ev.End, "an empty node ends at its start")
	assert.Equal(t, ChildExtra{MinQuark: types.EmptyNodeMinQuark, MaxQuark: types.EmptyNodeMaxQuark}, ev.Extra)

	_, err = n.close(0)
	assert.ErrorIs(t, err, types.ErrNodeClosed)
	assert.ErrorIs(t, n.add(str(100, 120, 0, "x")), types.ErrNodeClosed)

	m := newNode(testConfig(), types.NodeTypeLeaf, 4, 1, 100)
	require.NoError(t, m.add(str(100, 180, 7, "x")))
	ev, err = m.close(150)
	require.NoError(t, err)
	assert.Equal(t, int64(180), ev.End)
	assert.Equal(t, CloseEvent{Seq: 4, Start: 100, End: 180, Extra: ChildExtra{MinQuark: 7, MaxQuark: 7}}, ev)
}

func TestNodeRejectsOverflow(t *testing.T) {
	n := newNode(tinyConfig(), types.NodeTypeLeaf, 0, types.NoParent, 0)
	require.NoError(t, n.add(str(0, 1, 0, "a")))
	require.NoError(t, n.add(str(0, 1, 1, "b")))
	assert.False(t, n.hasRoomFor(str(0, 1, 2, "c")))
	assert.ErrorIs(t, n.add(str(0, 1, 2, "c")), types.ErrCapacity)
}

func TestLinkChildErrors(t *testing.T) {
	cfg := Config{BlockSize: 1024, MaxChildren: 2, Extension: QuarkExtension}
	leaf := newNode(cfg, types.NodeTypeLeaf, 0, types.NoParent, 0)
	other := newNode(cfg, types.NodeTypeLeaf, 1, types.NoParent, 0)
	assert.ErrorIs(t, leaf.linkChild(other), types.ErrTypeMismatch)

	plainCfg := cfg
	plainCfg.Extension = PlainExtension
	core := newNode(cfg, types.NodeTypeCore, 2, types.NoParent, 0)
	assert.ErrorIs(t, core.linkChild(newNode(plainCfg, types.NodeTypeLeaf, 3, 2, 0)), types.ErrTypeMismatch)

	require.NoError(t, core.linkChild(newNode(cfg, types.NodeTypeLeaf, 4, 2, 0)))
	require.NoError(t, core.linkChild(newNode(cfg, types.NodeTypeLeaf, 5, 2, 0)))
	assert.False(t, core.hasRoomForChild())
	assert.ErrorIs(t, core.linkChild(newNode(cfg, types.NodeTypeLeaf, 6, 2, 0)), types.ErrCapacity)

	assert.Error(t, core.applyChildClose(CloseEvent{Seq: 9}))
}

// A parent notified of the close and a parent linking the closed child
// afterwards end up with the same descriptor.
func TestNotifyAndPullAgree(t *testing.T) {
	cfg := testConfig()
	child := newNode(cfg, types.NodeTypeCore, 1, 0, 10)
	grandchild := newNode(cfg, types.NodeTypeLeaf, 2, 1, 12)
	require.NoError(t, child.linkChild(grandchild))
	require.NoError(t, child.add(str(10, 40, 9, "own")))
	require.NoError(t, grandchild.add(str(12, 60, 3, "deep")))

	ev, err := grandchild.close(0)
	require.NoError(t, err)
	require.NoError(t, child.applyChildClose(ev))
	grandchild.markOnDisk()

	notified := newNode(cfg, types.NodeTypeCore, 0, types.NoParent, 0)
	require.NoError(t, notified.linkChild(child))
	assert.Equal(t, types.UnknownChildEnd, notified.Children()[0].End)

	ev, err = child.close(0)
	require.NoError(t, err)
	require.NoError(t, notified.applyChildClose(ev))
	child.markOnDisk()

	pulled := newNode(cfg, types.NodeTypeCore, 5, types.NoParent, 0)
	require.NoError(t, pulled.linkChild(child))

	want := ChildDescriptor{Seq: 1, Start: 10, End: 60, MinQuark: 3, MaxQuark: 9}
	assert.Equal(t, []ChildDescriptor{want}, notified.Children())
	assert.Equal(t, notified.Children(), pulled.Children())
}

func TestSelectNextChildrenNarrowsConditions(t *testing.T) {
	cfg := testConfig()
	core := newNode(cfg, types.NodeTypeCore, 0, types.NoParent, 0)
	for i, span := range [][2]int64{{0, 10}, {11, 20}, {21, 30}} {
		child := newNode(cfg, types.NodeTypeLeaf, int32(i+1), 0, span[0])
		require.NoError(t, child.add(str(span[0], span[1], int32(i), "v")))
		require.NoError(t, core.linkChild(child))
		ev, err := child.close(0)
		require.NoError(t, err)
		require.NoError(t, core.applyChildClose(ev))
	}

	visits := core.selectNextChildren(condition.MustContinuous[int64](5, 25), condition.MustDiscrete[int32](0, 2))
	require.Len(t, visits, 2)
	assert.Equal(t, int32(1), visits[0].seq)
	assert.Equal(t, int64(5), visits[0].times.Min())
	assert.Equal(t, int64(10), visits[0].times.Max())
	assert.Equal(t, int32(3), visits[1].seq)
	assert.Equal(t, int64(21), visits[1].times.Min())
	assert.Equal(t, int64(25), visits[1].times.Max())
	assert.True(t, visits[1].quarks.Contains(2))
	assert.False(t, visits[1].quarks.Contains(0))
}

func TestNodeCodecRoundTrip(t *testing.T) {
	cfg := testConfig()
	core := newNode(cfg, types.NodeTypeCore, 7, 2, 100)
	require.NoError(t, core.add(interval.Interval{Start: 100, End: 200, Attribute: 4, Value: interval.LongValue(-5)}))
	require.NoError(t, core.add(interval.Interval{Start: 150, End: 160, Attribute: 1, Value: interval.DoubleValue(2.5)}))

	child := newNode(cfg, types.NodeTypeLeaf, 8, 7, 120)
	require.NoError(t, child.add(str(120, 300, 6, "leaf")))
	require.NoError(t, core.linkChild(child))
	ev, err := child.close(0)
	require.NoError(t, err)
	require.NoError(t, core.applyChildClose(ev))
	require.NoError(t, core.linkChild(newNode(cfg, types.NodeTypeLeaf, 9, 7, 301)))
	_, err = core.close(0)
	require.NoError(t, err)

	block, err := encodeNode(core)
	require.NoError(t, err)
	require.Len(t, block, cfg.BlockSize)

	got, err := decodeNode(block, cfg)
	require.NoError(t, err)
	assert.Equal(t, types.NodeOnDisk, got.State())
	assert.Equal(t, types.NodeTypeCore, got.Type())
	assert.Equal(t, int32(7), got.Seq())
	assert.Equal(t, int32(2), got.ParentSeq())
	assert.Equal(t, int64(100), got.Start())
	assert.Equal(t, core.End(), got.End())
	assert.Equal(t, core.Intervals(), got.Intervals())
	assert.Equal(t, core.Children(), got.Children())
	assert.Equal(t, core.Occupancy(), got.Occupancy())

	leafBlock, err := encodeNode(child)
	require.NoError(t, err)
	leaf, err := decodeNode(leafBlock, cfg)
	require.NoError(t, err)
	assert.True(t, leaf.IsLeaf())
	assert.Equal(t, child.Intervals(), leaf.Intervals())
}

func TestDecodeNodeCorrupt(t *testing.T) {
	cfg := testConfig()
	n := newNode(cfg, types.NodeTypeCore, 1, types.NoParent, 0)
	require.NoError(t, n.add(str(0, 5, 1, "x")))
	block, err := encodeNode(n)
	require.NoError(t, err)

	_, err = decodeNode(block[:100], cfg)
	assert.ErrorIs(t, err, types.ErrCorruptBlock)

	badType := append([]byte(nil), block...)
	badType[0] = 9
	_, err = decodeNode(badType, cfg)
	assert.ErrorIs(t, err, types.ErrCorruptBlock)

	badChildren := append([]byte(nil), block...)
	binary.LittleEndian.PutUint32(badChildren[CommonHeaderSize:], 99)
	_, err = decodeNode(badChildren, cfg)
	assert.ErrorIs(t, err, types.ErrCorruptBlock)

	badCount := append([]byte(nil), block...)
	binary.LittleEndian.PutUint32(badCount[CommonHeaderSize-4:], 1<<20)
	_, err = decodeNode(badCount, cfg)
	assert.ErrorIs(t, err, types.ErrCorruptBlock)

	// All zero blocks are never written: type 0 is unknown
	_, err = decodeNode(make([]byte, cfg.BlockSize), cfg)
	assert.ErrorIs(t, err, types.ErrCorruptBlock)
}

func TestHeaderRoundTripAndValidate(t *testing.T) {
	h := Header{
		Magic:           QuarkExtension.Magic(),
		FileVersion:     QuarkExtension.FileVersion(),
		ProviderVersion: 3,
		BlockSize:       4096,
		MaxChildren:     50,
		TreeStart:       -42,
		RootSeq:         5,
		NodeCount:       9,
	}
	buf := encodeHeader(h)
	assert.Len(t, buf, types.TreeHeaderSize)
	got, err := decodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	ext, err := got.validate(3)
	require.NoError(t, err)
	assert.Equal(t, "quark", ext.Name())

	_, err = got.validate(4)
	assert.ErrorIs(t, err, types.ErrVersionMismatch)

	bad := h
	bad.Magic = 0x1234
	_, err = bad.validate(3)
	assert.ErrorIs(t, err, types.ErrFormatMismatch)

	bad = h
	bad.FileVersion = 7
	_, err = bad.validate(3)
	assert.ErrorIs(t, err, types.ErrVersionMismatch)

	bad = h
	bad.BlockSize = 64
	_, err = bad.validate(3)
	assert.ErrorIs(t, err, types.ErrFormatMismatch)

	bad = h
	bad.RootSeq = 9
	_, err = bad.validate(3)
	assert.ErrorIs(t, err, types.ErrCorruptBlock)

	plain := h
	plain.Magic = PlainExtension.Magic()
	ext, err = plain.validate(3)
	require.NoError(t, err)
	assert.Equal(t, "plain", ext.Name())
}

func TestExtensionByName(t *testing.T) {
	ext, ok := ExtensionByName("")
	require.True(t, ok)
	assert.Equal(t, QuarkExtension, ext)
	ext, ok = ExtensionByName("plain")
	require.True(t, ok)
	assert.Equal(t, PlainExtension, ext)
	_, ok = ExtensionByName("bloom")
	assert.False(t, ok)
}
