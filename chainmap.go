package fatx

import (
	"encoding/binary"

	"github.com/xboxfatx/fatx/checkpoint"
)

// Unbounded tells FreeChain to walk to the chain's natural end rather
// than stop after a fixed number of steps.
const Unbounded = -1

// readChainMap loads the raw chain-map bytes and decodes them into an
// in-memory []uint32 indexed by (cluster-1). 16-bit entries in the range
// 0xFFF0-0xFFFF are widened to the 32-bit end-of-chain sentinel so all
// downstream code sees a single uniform representation.
func (p *Partition) readChainMap() error {
	raw := make([]byte, p.ChainMapSize)
	if err := p.device.readAt(p.ChainMapOffset, raw); err != nil {
		return checkpoint.Wrap(err, ErrNotFATX)
	}

	p.chainMap = make([]uint32, p.ClusterCount)
	switch p.EntrySize {
	case 2:
		for i := uint32(0); i < p.ClusterCount; i++ {
			v := binary.BigEndian.Uint16(raw[i*2:])
			if v&0xFFF0 == 0xFFF0 {
				p.chainMap[i] = ClusterEOF
			} else {
				p.chainMap[i] = uint32(v)
			}
		}
	default:
		for i := uint32(0); i < p.ClusterCount; i++ {
			p.chainMap[i] = binary.BigEndian.Uint32(raw[i*4:])
		}
	}

	return nil
}

// writeChainMap encodes the in-memory chain map with the partition's
// entry size and overwrites the on-disk region.
func (p *Partition) writeChainMap() error {
	raw := make([]byte, p.ChainMapSize)
	switch p.EntrySize {
	case 2:
		for i, v := range p.chainMap {
			binary.BigEndian.PutUint16(raw[i*2:], uint16(v))
		}
	default:
		for i, v := range p.chainMap {
			binary.BigEndian.PutUint32(raw[i*4:], v)
		}
	}

	return p.device.writeAt(p.ChainMapOffset, raw)
}

// clusterOffset returns the absolute byte offset of cluster (1-based).
func (p *Partition) clusterOffset(cluster uint32) int64 {
	return p.FileAreaOffset + int64(cluster-1)*int64(p.ClusterSize)
}

func (p *Partition) checkCluster(cluster uint32) error {
	if cluster < 1 || cluster > p.ClusterCount {
		return checkpoint.From(ErrBadCluster)
	}
	return nil
}

// ReadCluster reads the full contents of cluster (1-based) into a
// freshly allocated buffer.
func (p *Partition) ReadCluster(cluster uint32) ([]byte, error) {
	if err := p.checkCluster(cluster); err != nil {
		return nil, err
	}
	buf := make([]byte, p.ClusterSize)
	if err := p.device.readAt(p.clusterOffset(cluster), buf); err != nil {
		return nil, checkpoint.Wrap(err, ErrBadCluster)
	}
	return buf, nil
}

// WriteCluster overwrites the full contents of cluster (1-based). data
// must be exactly ClusterSize bytes.
func (p *Partition) WriteCluster(cluster uint32, data []byte) error {
	if err := p.checkCluster(cluster); err != nil {
		return err
	}
	if err := p.device.writeAt(p.clusterOffset(cluster), data); err != nil {
		return checkpoint.Wrap(err, ErrBadCluster)
	}
	return nil
}

func (p *Partition) getNext(cluster uint32) (uint32, error) {
	if err := p.checkCluster(cluster); err != nil {
		return 0, err
	}
	return p.chainMap[cluster-1], nil
}

func (p *Partition) setNext(cluster, value uint32) error {
	if err := p.checkCluster(cluster); err != nil {
		return err
	}
	p.chainMap[cluster-1] = value
	return nil
}

// AllocateCluster scans from cluster 1 for the first free entry, marks it
// end-of-chain (so an allocated-but-not-yet-linked cluster still reads as
// taken), and returns its index. It returns ErrNoSpace with a cluster
// value of ClusterFree if the partition has no free clusters left.
func (p *Partition) AllocateCluster(persist bool) (uint32, error) {
	for i := uint32(0); i < p.ClusterCount; i++ {
		if p.chainMap[i] == ClusterFree {
			cluster := i + 1
			p.chainMap[i] = ClusterEOF
			if persist {
				if err := p.writeChainMap(); err != nil {
					return 0, err
				}
			}
			return cluster, nil
		}
	}
	return ClusterFree, checkpoint.From(ErrNoSpace)
}

// FreeChain walks the chain starting at start and frees up to count
// clusters (pass Unbounded to walk to the chain's natural end). If
// markFirstAsLast, the very first step overwrites start's entry with
// ClusterEOF (capturing its original successor first) before the walk
// proceeds from that successor; this is how SetLength truncates a chain
// in place without also freeing the new last cluster.
//
// Hitting end-of-chain before count steps have been taken is only an
// error when the caller gave a specific count to reach (a bounded walk
// that comes up short); an Unbounded walk always tolerates running out.
func (p *Partition) FreeChain(start uint32, count int, markFirstAsLast, writeMap bool) error {
	cur := start

	if markFirstAsLast {
		originalNext, err := p.getNext(cur)
		if err != nil {
			return err
		}
		if err := p.setNext(cur, ClusterEOF); err != nil {
			return err
		}
		cur = originalNext
	}

	steps := 0
	for count == Unbounded || steps < count {
		if cur == ClusterEOF {
			if count != Unbounded && steps < count {
				return checkpoint.From(ErrBadChain)
			}
			break
		}

		next, err := p.getNext(cur)
		if err != nil {
			return err
		}
		if err := p.setNext(cur, ClusterFree); err != nil {
			return err
		}

		cur = next
		steps++
	}

	if writeMap {
		return p.writeChainMap()
	}
	return nil
}

// GetFreeClusterCount counts chain-map entries equal to ClusterFree.
func (p *Partition) GetFreeClusterCount() uint32 {
	var free uint32
	for _, v := range p.chainMap {
		if v == ClusterFree {
			free++
		}
	}
	return free
}

// GetFreeSpace reports the free space in bytes, satisfying the invariant
// Σ(chainMap[i]==0) × ClusterSize == GetFreeSpace().
func (p *Partition) GetFreeSpace() int64 {
	return int64(p.GetFreeClusterCount()) * int64(p.ClusterSize)
}

// chainLength walks from start and counts clusters, used by tests and by
// DirentStream.SetLength to determine how many clusters a file currently
// occupies.
func (p *Partition) chainLength(start uint32) (int, error) {
	if start == ClusterEOF {
		return 0, nil
	}
	count := 0
	cur := start
	for {
		count++
		next, err := p.getNext(cur)
		if err != nil {
			return 0, err
		}
		if next == ClusterEOF {
			return count, nil
		}
		cur = next
	}
}

// clusterAt walks steps clusters forward from start (0 returns start
// itself) and returns the cluster reached, failing
// ErrPositionPastAllocation if the chain ends first.
func (p *Partition) clusterAt(start uint32, steps int) (uint32, error) {
	cur := start
	for i := 0; i < steps; i++ {
		if cur == ClusterEOF {
			return 0, checkpoint.From(ErrPositionPastAllocation)
		}
		next, err := p.getNext(cur)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	if cur == ClusterEOF {
		return 0, checkpoint.From(ErrPositionPastAllocation)
	}
	return cur, nil
}
