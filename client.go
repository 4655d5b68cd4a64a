package tagreader

import (
	"log/slog"
)

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	Logger        *slog.Logger
	EnableMetrics bool
}

// Client is the request/reply facade over a worker pool. Each operation
// comes in two forms: the async form builds the request envelope, hands it
// to the pool and returns the reply immediately; the Blocking form waits
// for completion and returns a plain value, falling back to the type's
// neutral default when the request could not be served.
//
// Construct one Client at process start and pass it to call sites; there is
// no ambient instance.
type Client struct {
	pool    Pool
	log     *slog.Logger
	metrics *Metrics
}

// NewClient creates a client over the given pool
func NewClient(pool Pool, config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	c := &Client{
		pool: pool,
		log:  config.Logger,
	}
	if config.EnableMetrics {
		c.metrics = NewMetrics(0)
	}
	return c
}

// Metrics returns the client's metrics collector, or nil when disabled
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// send dispatches one envelope through the pool, recording metrics when
// enabled
func (c *Client) send(msg *Message) *Reply {
	if c.metrics == nil {
		return c.pool.SendMessage(msg)
	}

	start := c.metrics.StartRequest()
	reply := c.pool.SendMessage(msg)
	reply.OnFinished(func(success bool) {
		c.metrics.EndRequest(start, success)
	})
	return reply
}

// ReadFile requests the metadata of one local file
func (c *Client) ReadFile(filename string) *Reply {
	return c.send(NewReadFileMessage(filename))
}

// SaveFile requests that the file's tags be rewritten from metadata
func (c *Client) SaveFile(filename string, metadata SongMetadata) *Reply {
	return c.send(NewSaveFileMessage(filename, metadata))
}

// UpdateStatistics requests that the song's play statistics be written to
// its file. The file path is derived from the metadata's own URL.
func (c *Client) UpdateStatistics(metadata SongMetadata) *Reply {
	return c.send(NewSaveStatisticsMessage(metadata.LocalPath(), metadata))
}

// UpdateRating requests that the song's rating be written to its file
func (c *Client) UpdateRating(metadata SongMetadata) *Reply {
	return c.send(NewSaveRatingMessage(metadata.LocalPath(), metadata))
}

// UpdateStatisticsForAll fires one independent statistics request per song.
// Results are discarded; an item failing does not affect the others.
func (c *Client) UpdateStatisticsForAll(songs []SongMetadata) {
	for _, song := range songs {
		song := song
		c.UpdateStatistics(song).OnFinished(func(success bool) {
			if !success {
				c.log.Debug("statistics update failed", "url", song.URL)
			}
		})
	}
}

// UpdateRatingForAll fires one independent rating request per song.
// Results are discarded; an item failing does not affect the others.
func (c *Client) UpdateRatingForAll(songs []SongMetadata) {
	for _, song := range songs {
		song := song
		c.UpdateRating(song).OnFinished(func(success bool) {
			if !success {
				c.log.Debug("rating update failed", "url", song.URL)
			}
		})
	}
}

// IsMediaFile asks a worker whether the file is a readable media file
func (c *Client) IsMediaFile(filename string) *Reply {
	return c.send(NewIsMediaFileMessage(filename))
}

// LoadEmbeddedArt requests the raw bytes of the file's embedded cover art
func (c *Client) LoadEmbeddedArt(filename string) *Reply {
	return c.send(NewLoadEmbeddedArtMessage(filename))
}

// ReadCloudFile requests the metadata of a remote file
func (c *Client) ReadCloudFile(downloadURL, title string, size int64, mimeType, authorisationHeader string) *Reply {
	return c.send(NewReadCloudFileMessage(downloadURL, title, size, mimeType, authorisationHeader))
}

// GetNetworkStatistics broadcasts a statistics request to every live
// worker and returns the aggregating reply
func (c *Client) GetNetworkStatistics() *BroadcastReply {
	msg := NewNetworkStatisticsMessage()
	replies := c.pool.Broadcast(msg)
	if len(replies) == 0 {
		c.log.Warn("network statistics broadcast reached no workers")
	}
	return NewBroadcastReply(msg, replies)
}

// assertNotDispatchGoroutine guards every blocking call. Blocking on the
// dispatch goroutine would leave nobody to deliver the completion, so it is
// a programming error, not a runtime condition.
func (c *Client) assertNotDispatchGoroutine() {
	if c.pool.OnDispatchGoroutine() {
		panic("tagreader: blocking call on the pool dispatch goroutine would deadlock")
	}
}

// ReadFileBlocking reads a file's metadata, waiting for the result.
// Returns the zero SongMetadata if the request could not be served.
func (c *Client) ReadFileBlocking(filename string) SongMetadata {
	c.assertNotDispatchGoroutine()

	reply := c.ReadFile(filename)
	if reply.WaitForFinished() {
		if resp := reply.Message().ReadFileResponse; resp != nil {
			return resp.Metadata
		}
	}
	return SongMetadata{}
}

// SaveFileBlocking writes a file's tags, waiting for the result
func (c *Client) SaveFileBlocking(filename string, metadata SongMetadata) bool {
	c.assertNotDispatchGoroutine()

	reply := c.SaveFile(filename, metadata)
	if reply.WaitForFinished() {
		if resp := reply.Message().SaveFileResponse; resp != nil {
			return resp.Success
		}
	}
	return false
}

// UpdateStatisticsBlocking writes a song's statistics, waiting for the
// result
func (c *Client) UpdateStatisticsBlocking(metadata SongMetadata) bool {
	c.assertNotDispatchGoroutine()

	reply := c.UpdateStatistics(metadata)
	if reply.WaitForFinished() {
		if resp := reply.Message().SaveStatisticsResponse; resp != nil {
			return resp.Success
		}
	}
	return false
}

// UpdateRatingBlocking writes a song's rating, waiting for the result
func (c *Client) UpdateRatingBlocking(metadata SongMetadata) bool {
	c.assertNotDispatchGoroutine()

	reply := c.UpdateRating(metadata)
	if reply.WaitForFinished() {
		if resp := reply.Message().SaveRatingResponse; resp != nil {
			return resp.Success
		}
	}
	return false
}

// IsMediaFileBlocking classifies a file, waiting for the result
func (c *Client) IsMediaFileBlocking(filename string) bool {
	c.assertNotDispatchGoroutine()

	reply := c.IsMediaFile(filename)
	if reply.WaitForFinished() {
		if resp := reply.Message().IsMediaFileResponse; resp != nil {
			return resp.Success
		}
	}
	return false
}

// LoadEmbeddedArtBlocking loads embedded art, waiting for the result.
// Returns nil if the file has no art or the request could not be served.
func (c *Client) LoadEmbeddedArtBlocking(filename string) []byte {
	c.assertNotDispatchGoroutine()

	reply := c.LoadEmbeddedArt(filename)
	if reply.WaitForFinished() {
		if resp := reply.Message().LoadEmbeddedArtResponse; resp != nil {
			return resp.Data
		}
	}
	return nil
}

// ReadCloudFileBlocking reads a remote file's metadata, waiting for the
// result
func (c *Client) ReadCloudFileBlocking(downloadURL, title string, size int64, mimeType, authorisationHeader string) SongMetadata {
	c.assertNotDispatchGoroutine()

	reply := c.ReadCloudFile(downloadURL, title, size, mimeType, authorisationHeader)
	if reply.WaitForFinished() {
		if resp := reply.Message().ReadCloudFileResponse; resp != nil {
			return resp.Metadata
		}
	}
	return SongMetadata{}
}

// GetNetworkStatisticsBlocking broadcasts a network-statistics request,
// waits for every worker's answer, and aggregates the merged history per
// host
func (c *Client) GetNetworkStatisticsBlocking() NetworkUsage {
	c.assertNotDispatchGoroutine()

	reply := c.GetNetworkStatistics()
	reply.WaitForFinished()

	usage := AggregateNetworkStatistics(MergeNetworkStatistics(reply.Replies()))
	c.log.Debug("network statistics", "requests_by_host", usage.RequestsByHost, "bytes_by_host", usage.BytesByHost)
	return usage
}
