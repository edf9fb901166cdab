package fatx

import (
	"strings"

	"github.com/xboxfatx/fatx/checkpoint"
)

// invalidateCaches drops any cached directory listing that a mutation to
// parentCluster would make stale.
func (p *Partition) invalidateCaches(parentCluster uint32) {
	if parentCluster == p.RootDirFirstCluster {
		p.rootCache = nil
	}
	if p.haveLastRequested && p.lastRequestedCluster == parentCluster {
		p.lastRequestedCache = nil
		p.haveLastRequested = false
	}
}

// ReadDirectory returns every valid slot (including soft-deleted ones) in
// the directory whose listing starts at cluster, walking its full chain
// and stopping the walk entirely at the first invalid (empty or
// malformed) slot encountered, per §4.2.
func (p *Partition) ReadDirectory(cluster uint32) ([]*Dirent, error) {
	if cluster == p.RootDirFirstCluster && p.rootCache != nil {
		return p.rootCache, nil
	}
	if p.haveLastRequested && p.lastRequestedCluster == cluster {
		return p.lastRequestedCache, nil
	}

	var entries []*Dirent

	cur := cluster
outer:
	for {
		data, err := p.ReadCluster(cur)
		if err != nil {
			return nil, err
		}

		for slot := uint32(0); slot < p.DirentsPerCluster; slot++ {
			raw := data[slot*direntSize : (slot+1)*direntSize]
			d := decodeDirent(raw, cur, int(slot))

			if !isSlotValid(d.NameLength) {
				break outer
			}
			d.partition = p
			entries = append(entries, d)
		}

		next, err := p.getNext(cur)
		if err != nil {
			return nil, err
		}
		if next == ClusterEOF {
			break
		}
		cur = next
	}

	p.lastRequestedCluster = cluster
	p.lastRequestedCache = entries
	p.haveLastRequested = true
	if cluster == p.RootDirFirstCluster {
		p.rootCache = entries
	}

	return entries, nil
}

// findFreeSlot locates the first empty slot in parentCluster's chain,
// extending the chain by one zero-filled cluster if none exists. It
// returns the cluster and slot index of the free slot, and whether the
// chain was extended (meaning the chain map needs a persistent write).
func (p *Partition) findFreeSlot(parentCluster uint32) (cluster uint32, slot int, extended bool, err error) {
	cur := parentCluster
	for {
		data, rerr := p.ReadCluster(cur)
		if rerr != nil {
			return 0, 0, false, rerr
		}

		for i := uint32(0); i < p.DirentsPerCluster; i++ {
			nameLen := data[i*direntSize]
			if isSlotEmpty(nameLen) {
				return cur, int(i), extended, nil
			}
		}

		next, nerr := p.getNext(cur)
		if nerr != nil {
			return 0, 0, false, nerr
		}

		if next == ClusterEOF {
			newCluster, aerr := p.AllocateCluster(false)
			if aerr != nil {
				return 0, 0, false, aerr
			}
			if serr := p.setNext(cur, newCluster); serr != nil {
				return 0, 0, false, serr
			}
			zero := make([]byte, p.ClusterSize)
			for i := range zero {
				zero[i] = 0
			}
			// A slot's name-length byte of 0x00 already marks it empty;
			// zero-filling the whole cluster gives every slot that byte.
			if werr := p.WriteCluster(newCluster, zero); werr != nil {
				return 0, 0, false, werr
			}
			extended = true
			cur = newCluster
			continue
		}

		cur = next
	}
}

func (p *Partition) writeDirentAt(cluster uint32, slot int, d *Dirent) error {
	raw := d.encode()
	return p.device.writeAt(p.clusterOffset(cluster)+int64(slot)*direntSize, raw)
}

// CreateDirent allocates a fresh dirent named name inside the directory
// at parentCluster, extending the directory's cluster chain if it has no
// free slot. Directories are pre-allocated one zero-filled data cluster;
// files start with no data (FirstCluster == ClusterEOF).
func (p *Partition) CreateDirent(parentCluster uint32, name string, isDirectory bool) (*Dirent, error) {
	p.invalidateCaches(parentCluster)

	cluster, slot, extended, err := p.findFreeSlot(parentCluster)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrNoSpace)
	}

	d := &Dirent{partition: p, parentCluster: cluster, slotIndex: slot}
	if err := d.setName(name); err != nil {
		return nil, err
	}

	now := nowPacked()
	d.CreationTime = unpackDateTime(now)
	d.ModifiedTime = unpackDateTime(now)
	d.AccessTime = unpackDateTime(now)

	d.Attributes = AttrNormal
	if isDirectory {
		d.Attributes |= AttrDirectory

		dataCluster, aerr := p.AllocateCluster(false)
		if aerr != nil {
			return nil, checkpoint.Wrap(aerr, ErrNoSpace)
		}
		zero := make([]byte, p.ClusterSize)
		if werr := p.WriteCluster(dataCluster, zero); werr != nil {
			return nil, werr
		}
		d.FirstCluster = dataCluster
		extended = true
	} else {
		d.FirstCluster = ClusterEOF
	}
	d.Size = 0

	if err := p.writeDirentAt(cluster, slot, d); err != nil {
		return nil, err
	}

	if extended {
		if err := p.writeChainMap(); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// UpdateDirent rewrites d's slot in place: the parent cluster is read
// into a scratch buffer, the slot's 64 bytes are replaced, and the
// cluster is written back whole.
func (p *Partition) UpdateDirent(d *Dirent) error {
	data, err := p.ReadCluster(d.parentCluster)
	if err != nil {
		return err
	}

	raw := d.encode()
	copy(data[d.slotIndex*direntSize:(d.slotIndex+1)*direntSize], raw)

	if err := p.WriteCluster(d.parentCluster, data); err != nil {
		return err
	}

	p.invalidateCaches(d.parentCluster)
	return nil
}

// DirentDelete frees d's data chain (if it has one) and soft-deletes its
// slot. The dirent's on-disk FirstCluster is left untouched — it may
// point at clusters that have already been reclaimed, but preserving it
// is what makes an eventual undelete meaningful at all.
func (p *Partition) DirentDelete(d *Dirent) error {
	if d.FirstCluster != ClusterEOF {
		if err := p.FreeChain(d.FirstCluster, Unbounded, false, true); err != nil {
			return err
		}
	}

	d.NameLength = nameLengthSoftDeleted
	return p.UpdateDirent(d)
}

// DirentRename validates newName, rewrites d's name, bumps its modified
// and access times, and persists it.
func (p *Partition) DirentRename(d *Dirent, newName string) error {
	if err := d.setName(newName); err != nil {
		return err
	}
	now := nowPacked()
	d.ModifiedTime = unpackDateTime(now)
	d.AccessTime = unpackDateTime(now)
	return p.UpdateDirent(d)
}

// MoveDirent relocates d into newParentCluster, preserving its name,
// data chain, size, attributes, and timestamps. If d already lives under
// newParentCluster this is a no-op.
//
// The source slot is soft-deleted and, per the reference format's own
// behavior (documented as an accepted anomaly, not a bug, in
// SPEC_FULL.md §4), its FirstCluster is zeroed to ClusterEOF after the
// destination has already copied the original value — so an undelete of
// the source slot after a move will not resurrect the moved data.
func (p *Partition) MoveDirent(newParentCluster uint32, d *Dirent) (*Dirent, error) {
	if d.parentCluster == newParentCluster {
		return d, nil
	}

	p.invalidateCaches(newParentCluster)
	p.invalidateCaches(d.parentCluster)

	cluster, slot, extended, err := p.findFreeSlot(newParentCluster)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrNoSpace)
	}

	moved := &Dirent{
		partition:     p,
		parentCluster: cluster,
		slotIndex:     slot,
		Attributes:    d.Attributes,
		FirstCluster:  d.FirstCluster,
		Size:          d.Size,
		CreationTime:  d.CreationTime,
		ModifiedTime:  d.ModifiedTime,
		AccessTime:    d.AccessTime,
	}
	if err := moved.setName(d.Name); err != nil {
		return nil, err
	}

	if err := p.writeDirentAt(cluster, slot, moved); err != nil {
		return nil, err
	}
	if extended {
		if err := p.writeChainMap(); err != nil {
			return nil, err
		}
	}

	d.NameLength = nameLengthSoftDeleted
	d.FirstCluster = ClusterEOF
	if err := p.UpdateDirent(d); err != nil {
		return nil, err
	}

	return moved, nil
}

// findChild linear-searches directory listing for a live (non
// soft-deleted) entry named name, case-insensitively.
func findChild(entries []*Dirent, name string) *Dirent {
	for _, d := range entries {
		if d.IsDeleted() {
			continue
		}
		if strings.EqualFold(d.Name, name) {
			return d
		}
	}
	return nil
}

// DirentGet resolves path (backslash-separated, case-insensitive
// components) starting at cluster, accepting either a file or a
// directory as the final component.
func (p *Partition) DirentGet(cluster uint32, path string) (*Dirent, error) {
	return p.direntGet(cluster, path, nil)
}

// DirentGetTyped is DirentGet with the additional constraint that the
// final component's IsDirectory() must equal isDir.
func (p *Partition) DirentGetTyped(cluster uint32, path string, isDir bool) (*Dirent, error) {
	return p.direntGet(cluster, path, &isDir)
}

func (p *Partition) direntGet(cluster uint32, path string, isDir *bool) (*Dirent, error) {
	components := splitPath(path)
	if len(components) == 0 {
		return nil, checkpoint.From(ErrNotFound)
	}

	cur := cluster
	for i, name := range components {
		entries, err := p.ReadDirectory(cur)
		if err != nil {
			return nil, err
		}

		child := findChild(entries, name)
		if child == nil {
			return nil, checkpoint.From(ErrNotFound)
		}

		last := i == len(components)-1
		if !last {
			if !child.IsDirectory() {
				return nil, checkpoint.From(ErrNotADirectory)
			}
			cur = child.FirstCluster
			continue
		}

		if isDir != nil && child.IsDirectory() != *isDir {
			return nil, checkpoint.From(ErrNotFound)
		}
		return child, nil
	}

	return nil, checkpoint.From(ErrNotFound)
}

// UndeleteDirent recovers a soft-deleted slot's name by scanning its
// preserved raw name bytes for the first 0x00/0xFF terminator, restoring
// NameLength (and therefore Name) without touching the chain map — the
// slot's FirstCluster is returned as-is, which after a DirentMove may no
// longer address a live chain (see MoveDirent).
func (p *Partition) UndeleteDirent(parentCluster uint32, slotIndex int) (*Dirent, error) {
	data, err := p.ReadCluster(parentCluster)
	if err != nil {
		return nil, err
	}
	raw := data[slotIndex*direntSize : (slotIndex+1)*direntSize]
	d := decodeDirent(raw, parentCluster, slotIndex)
	if d.NameLength != nameLengthSoftDeleted {
		return nil, checkpoint.From(ErrNotFound)
	}

	length := 0
	for length < nameFieldSize && d.nameRaw[length] != 0x00 && d.nameRaw[length] != 0xFF {
		length++
	}

	d.NameLength = byte(length)
	d.Name = string(d.nameRaw[:length])
	d.partition = p
	return d, nil
}

// Walk performs an iterative (explicit-stack, not recursive-call)
// preorder traversal of the directory rooted at startCluster, invoking
// visit for every live (non soft-deleted) entry found, files and
// directories alike.
func (p *Partition) Walk(startCluster uint32, visit func(*Dirent) error) error {
	stack := []uint32{startCluster}

	for len(stack) > 0 {
		cluster := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := p.ReadDirectory(cluster)
		if err != nil {
			return err
		}

		for _, d := range entries {
			if d.IsDeleted() {
				continue
			}
			if err := visit(d); err != nil {
				return err
			}
			if d.IsDirectory() {
				stack = append(stack, d.FirstCluster)
			}
		}
	}

	return nil
}

// DeleteRecursive deletes d, and if it is a directory, every entry
// beneath it first. All descendants are enumerated (via Walk, before any
// deletion begins) prior to any DirentDelete call, since deleting a
// directory reclaims the very cluster chain enumeration depends on.
func (p *Partition) DeleteRecursive(d *Dirent) error {
	if d.IsDirectory() {
		var descendants []*Dirent
		if err := p.Walk(d.FirstCluster, func(x *Dirent) error {
			descendants = append(descendants, x)
			return nil
		}); err != nil {
			return err
		}
		for _, x := range descendants {
			if err := p.DirentDelete(x); err != nil {
				return err
			}
		}
	}

	return p.DirentDelete(d)
}
