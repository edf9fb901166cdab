package fatx

import (
	"io"

	"github.com/xboxfatx/fatx/checkpoint"
)

// OpenMode selects how DirentStream resolves and initializes the target
// dirent before handing back a stream, per §4.4.
type OpenMode int

const (
	ModeOpen OpenMode = iota
	ModeCreate
	ModeOpenOrCreate
	ModeAppend
	ModeTruncate
	ModeCreateNew
)

// DirentStream is a seekable byte stream over one dirent's cluster
// chain. It keeps a single cluster-sized cache buffer at a time; reads
// and writes never touch more than the clusters straddling the request.
type DirentStream struct {
	partition *Partition
	dirent    *Dirent

	position   int64
	clustersIn int

	currentCluster uint32
	cache          []byte
	hasCache       bool
	cacheDirty     bool

	fileModified bool
}

// OpenDirentStream resolves name inside the directory at parentCluster
// according to mode and returns a stream ready for I/O at the mode's
// starting position.
func OpenDirentStream(p *Partition, parentCluster uint32, name string, mode OpenMode) (*DirentStream, error) {
	entries, err := p.ReadDirectory(parentCluster)
	if err != nil {
		return nil, err
	}
	existing := findChild(entries, name)

	switch mode {
	case ModeOpen:
		if existing == nil {
			return nil, checkpoint.From(ErrNotFound)
		}
		return newDirentStream(p, existing), nil

	case ModeCreateNew:
		if existing != nil {
			return nil, checkpoint.From(ErrAlreadyExists)
		}
		d, err := p.CreateDirent(parentCluster, name, false)
		if err != nil {
			return nil, err
		}
		return newDirentStream(p, d), nil

	case ModeCreate:
		d := existing
		if d == nil {
			d, err = p.CreateDirent(parentCluster, name, false)
			if err != nil {
				return nil, err
			}
		}
		ds := newDirentStream(p, d)
		if err := ds.SetLength(0); err != nil {
			return nil, err
		}
		now := nowPacked()
		d.CreationTime = unpackDateTime(now)
		if err := p.UpdateDirent(d); err != nil {
			return nil, err
		}
		return ds, nil

	case ModeOpenOrCreate:
		d := existing
		if d == nil {
			d, err = p.CreateDirent(parentCluster, name, false)
			if err != nil {
				return nil, err
			}
		}
		return newDirentStream(p, d), nil

	case ModeAppend:
		ds, err := OpenDirentStream(p, parentCluster, name, ModeOpenOrCreate)
		if err != nil {
			return nil, err
		}
		if _, err := ds.Seek(0, io.SeekEnd); err != nil {
			return nil, err
		}
		return ds, nil

	case ModeTruncate:
		ds, err := OpenDirentStream(p, parentCluster, name, ModeOpen)
		if err != nil {
			return nil, err
		}
		if err := ds.SetLength(0); err != nil {
			return nil, err
		}
		return ds, nil

	default:
		return nil, checkpoint.From(ErrUnsupportedMode)
	}
}

func newDirentStream(p *Partition, d *Dirent) *DirentStream {
	return &DirentStream{partition: p, dirent: d}
}

// Dirent exposes the underlying dirent, e.g. for stat.go.
func (ds *DirentStream) Dirent() *Dirent { return ds.dirent }

func (ds *DirentStream) flushCache() error {
	if ds.hasCache && ds.cacheDirty {
		if err := ds.partition.WriteCluster(ds.currentCluster, ds.cache); err != nil {
			return err
		}
		ds.cacheDirty = false
	}
	return nil
}

// ensureCache loads the cluster holding ds.position if it isn't already
// cached. When no cluster is resolved (ds.currentCluster == 0), it first
// sets ds.clustersIn from the position and walks the chain to it.
func (ds *DirentStream) ensureCache() error {
	if ds.hasCache {
		return nil
	}
	if ds.currentCluster == 0 {
		ds.clustersIn = int(ds.position / int64(ds.partition.ClusterSize))
		cluster, err := ds.partition.clusterAt(ds.dirent.FirstCluster, ds.clustersIn)
		if err != nil {
			return err
		}
		ds.currentCluster = cluster
	}
	data, err := ds.partition.ReadCluster(ds.currentCluster)
	if err != nil {
		return err
	}
	ds.cache = data
	ds.hasCache = true
	ds.cacheDirty = false
	return nil
}

// crossCluster flushes the current cluster and advances to its
// successor in the chain.
func (ds *DirentStream) crossCluster() error {
	if err := ds.flushCache(); err != nil {
		return err
	}
	next, err := ds.partition.getNext(ds.currentCluster)
	if err != nil {
		return err
	}
	ds.currentCluster = next
	ds.clustersIn++
	ds.hasCache = false
	return nil
}

// Read fills buf with up to len(buf) bytes, clamped to the remaining
// distance to the dirent's declared size. Reads never alter metadata.
func (ds *DirentStream) Read(buf []byte) (int, error) {
	remaining := int64(ds.dirent.Size) - ds.position
	if remaining <= 0 {
		return 0, io.EOF
	}
	want := int64(len(buf))
	if want > remaining {
		want = remaining
	}
	if want == 0 {
		return 0, nil
	}

	clusterSize := int64(ds.partition.ClusterSize)
	total := 0
	left := int(want)

	for left > 0 {
		if err := ds.ensureCache(); err != nil {
			return total, err
		}
		offsetInCluster := int(ds.position % clusterSize)
		avail := int(clusterSize) - offsetInCluster
		n := left
		if n > avail {
			n = avail
		}
		copy(buf[total:total+n], ds.cache[offsetInCluster:offsetInCluster+n])
		total += n
		left -= n
		ds.position += int64(n)

		if offsetInCluster+n == int(clusterSize) && (left > 0 || ds.position < int64(ds.dirent.Size)) {
			if err := ds.crossCluster(); err != nil {
				return total, err
			}
		}
	}

	return total, nil
}

// Write writes len(buf) bytes at the current position, extending the
// dirent's allocation (and its declared size) as needed.
func (ds *DirentStream) Write(buf []byte) (int, error) {
	ds.fileModified = true
	if len(buf) == 0 {
		return 0, nil
	}

	if !ds.hasCache && ds.dirent.Size == 0 {
		if err := ds.SetLength(int64(len(buf))); err != nil {
			return 0, err
		}
	}

	needed := ds.position + int64(len(buf))
	if needed > int64(ds.dirent.Size) {
		if err := ds.SetLength(needed); err != nil {
			return 0, err
		}
	}

	clusterSize := int64(ds.partition.ClusterSize)
	total := 0
	left := len(buf)

	for left > 0 {
		if err := ds.ensureCache(); err != nil {
			return total, err
		}
		offsetInCluster := int(ds.position % clusterSize)
		avail := int(clusterSize) - offsetInCluster
		n := left
		if n > avail {
			n = avail
		}
		copy(ds.cache[offsetInCluster:offsetInCluster+n], buf[total:total+n])
		ds.cacheDirty = true
		total += n
		left -= n
		ds.position += int64(n)

		if offsetInCluster+n == int(clusterSize) && (left > 0 || ds.position < int64(ds.dirent.Size)) {
			if err := ds.crossCluster(); err != nil {
				return total, err
			}
		}
	}

	return total, nil
}

// Seek repositions the stream. A seek landing at or past the dirent's
// declared size drops the cache without loading a cluster — there may be
// no allocated cluster there yet, and Write is responsible for extending
// the chain when data actually arrives. A seek that stays inside the
// cluster already cached only moves the position. Any other seek within
// the current bounds walks the chain from the dirent's first cluster and
// loads the destination cluster eagerly, per §4.4.
func (ds *DirentStream) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = ds.position + offset
	case io.SeekEnd:
		newPos = int64(ds.dirent.Size) + offset
	default:
		return 0, checkpoint.From(ErrUnsupportedMode)
	}
	if newPos < 0 {
		return 0, checkpoint.From(ErrPositionPastAllocation)
	}

	clusterSize := int64(ds.partition.ClusterSize)
	clustersInNew := int(newPos / clusterSize)

	if ds.hasCache && clustersInNew == ds.clustersIn {
		ds.position = newPos
		return newPos, nil
	}

	if err := ds.flushCache(); err != nil {
		return 0, err
	}

	if newPos >= int64(ds.dirent.Size) {
		ds.hasCache = false
		ds.currentCluster = 0
		ds.clustersIn = clustersInNew
		ds.position = newPos
		return newPos, nil
	}

	cluster, err := ds.partition.clusterAt(ds.dirent.FirstCluster, clustersInNew)
	if err != nil {
		return 0, err
	}
	data, err := ds.partition.ReadCluster(cluster)
	if err != nil {
		return 0, err
	}

	ds.currentCluster = cluster
	ds.cache = data
	ds.hasCache = true
	ds.cacheDirty = false
	ds.clustersIn = clustersInNew
	ds.position = newPos
	return newPos, nil
}

func ceilDivInt64(n, d int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

// SetLength grows or shrinks the dirent's cluster chain to match
// newLength exactly, persisting both the chain map and the dirent.
func (ds *DirentStream) SetLength(newLength int64) error {
	if newLength == int64(ds.dirent.Size) {
		return nil
	}
	if err := ds.flushCache(); err != nil {
		return err
	}
	ds.hasCache = false
	ds.currentCluster = 0

	if newLength > int64(ds.dirent.Size) {
		return ds.grow(newLength)
	}
	return ds.shrink(newLength)
}

func (ds *DirentStream) grow(newLength int64) error {
	p := ds.partition
	clusterSize := int64(p.ClusterSize)
	targetClusters := int(ceilDivInt64(newLength, clusterSize))

	currentClusters := 0
	if ds.dirent.FirstCluster != ClusterEOF {
		n, err := p.chainLength(ds.dirent.FirstCluster)
		if err != nil {
			return err
		}
		currentClusters = n
	}

	delta := targetClusters - currentClusters
	if delta > 0 && uint32(delta) > p.GetFreeClusterCount() {
		return checkpoint.From(ErrNoSpace)
	}

	var last uint32
	if ds.dirent.FirstCluster == ClusterEOF {
		c, err := p.AllocateCluster(false)
		if err != nil {
			return err
		}
		ds.dirent.FirstCluster = c
		last = c
		currentClusters = 1
	} else {
		c, err := p.clusterAt(ds.dirent.FirstCluster, currentClusters-1)
		if err != nil {
			return err
		}
		last = c
	}

	for currentClusters < targetClusters {
		next, err := p.AllocateCluster(false)
		if err != nil {
			return err
		}
		if err := p.setNext(last, next); err != nil {
			return err
		}
		last = next
		currentClusters++
	}

	if err := p.writeChainMap(); err != nil {
		return err
	}

	ds.dirent.Size = uint32(newLength)
	return ds.persistMetadata()
}

func (ds *DirentStream) shrink(newLength int64) error {
	p := ds.partition
	clusterSize := int64(p.ClusterSize)
	targetClusters := int(ceilDivInt64(newLength, clusterSize))

	var target uint32
	if targetClusters == 0 {
		target = ds.dirent.FirstCluster
	} else {
		c, err := p.clusterAt(ds.dirent.FirstCluster, targetClusters-1)
		if err != nil {
			return err
		}
		target = c
	}

	if err := p.FreeChain(target, Unbounded, true, false); err != nil {
		return err
	}

	if targetClusters == 0 {
		if err := p.setNext(target, ClusterFree); err != nil {
			return err
		}
		ds.dirent.FirstCluster = ClusterEOF
	}

	if err := p.writeChainMap(); err != nil {
		return err
	}

	ds.dirent.Size = uint32(newLength)
	return ds.persistMetadata()
}

func (ds *DirentStream) persistMetadata() error {
	now := nowPacked()
	ds.dirent.ModifiedTime = unpackDateTime(now)
	return ds.partition.UpdateDirent(ds.dirent)
}

// Len reports the dirent's current declared size.
func (ds *DirentStream) Len() (int64, error) {
	return int64(ds.dirent.Size), nil
}

// Flush writes back the currently cached cluster, if dirty, without
// touching metadata.
func (ds *DirentStream) Flush() error {
	return ds.flushCache()
}

// Close flushes the cached cluster and, if any write occurred since
// open, bumps the modified time and persists the dirent.
func (ds *DirentStream) Close() error {
	if err := ds.flushCache(); err != nil {
		return err
	}
	if ds.fileModified {
		return ds.persistMetadata()
	}
	return nil
}
