package tagreader

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const AppName = "tagreader_ipc_v1"

// RequestKind identifies which request variant an envelope carries
type RequestKind string

const (
	KindReadFile          RequestKind = "read_file"
	KindSaveFile          RequestKind = "save_file"
	KindSaveStatistics    RequestKind = "save_statistics"
	KindSaveRating        RequestKind = "save_rating"
	KindIsMediaFile       RequestKind = "is_media_file"
	KindLoadEmbeddedArt   RequestKind = "load_embedded_art"
	KindReadCloudFile     RequestKind = "read_cloud_file"
	KindNetworkStatistics RequestKind = "network_statistics"
	KindNone              RequestKind = ""
)

// SongMetadata is the metadata record exchanged with the worker. The field
// set mirrors the external protocol schema; the worker owns its semantics.
type SongMetadata struct {
	Valid bool `msgpack:"valid"`

	Title       string `msgpack:"title,omitempty"`
	Album       string `msgpack:"album,omitempty"`
	Artist      string `msgpack:"artist,omitempty"`
	AlbumArtist string `msgpack:"albumartist,omitempty"`
	Composer    string `msgpack:"composer,omitempty"`
	Genre       string `msgpack:"genre,omitempty"`
	Comment     string `msgpack:"comment,omitempty"`

	Track       int  `msgpack:"track,omitempty"`
	Disc        int  `msgpack:"disc,omitempty"`
	Year        int  `msgpack:"year,omitempty"`
	Compilation bool `msgpack:"compilation,omitempty"`

	LengthNanosec int64 `msgpack:"length_nanosec,omitempty"`
	Bitrate       int   `msgpack:"bitrate,omitempty"`
	Samplerate    int   `msgpack:"samplerate,omitempty"`
	Filesize      int64 `msgpack:"filesize,omitempty"`
	MTime         int64 `msgpack:"mtime,omitempty"`
	CTime         int64 `msgpack:"ctime,omitempty"`

	URL        string  `msgpack:"url,omitempty"`
	PlayCount  int     `msgpack:"playcount,omitempty"`
	SkipCount  int     `msgpack:"skipcount,omitempty"`
	LastPlayed int64   `msgpack:"lastplayed,omitempty"`
	Score      int     `msgpack:"score,omitempty"`
	Rating     float32 `msgpack:"rating,omitempty"`
}

// LocalPath returns the on-disk path for the song's URL field.
// Returns "" for non-file URLs.
func (m *SongMetadata) LocalPath() string {
	if m.URL == "" {
		return ""
	}
	u, err := url.Parse(m.URL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "file":
		return u.Path
	case "":
		// Bare paths are common in library databases
		return m.URL
	default:
		return ""
	}
}

type ReadFileRequest struct {
	Filename string `msgpack:"filename"`
}

type ReadFileResponse struct {
	Metadata SongMetadata `msgpack:"metadata"`
}

type SaveFileRequest struct {
	Filename string       `msgpack:"filename"`
	Metadata SongMetadata `msgpack:"metadata"`
}

type SaveFileResponse struct {
	Success bool `msgpack:"success"`
}

type SaveStatisticsRequest struct {
	Filename string       `msgpack:"filename"`
	Metadata SongMetadata `msgpack:"metadata"`
}

type SaveStatisticsResponse struct {
	Success bool `msgpack:"success"`
}

type SaveRatingRequest struct {
	Filename string       `msgpack:"filename"`
	Metadata SongMetadata `msgpack:"metadata"`
}

type SaveRatingResponse struct {
	Success bool `msgpack:"success"`
}

type IsMediaFileRequest struct {
	Filename string `msgpack:"filename"`
}

type IsMediaFileResponse struct {
	Success bool `msgpack:"success"`
}

type LoadEmbeddedArtRequest struct {
	Filename string `msgpack:"filename"`
}

type LoadEmbeddedArtResponse struct {
	Data []byte `msgpack:"data"`
}

type ReadCloudFileRequest struct {
	DownloadURL         string `msgpack:"download_url"`
	Title               string `msgpack:"title"`
	Size                int64  `msgpack:"size"`
	MimeType            string `msgpack:"mime_type"`
	AuthorisationHeader string `msgpack:"authorisation_header"`
}

type ReadCloudFileResponse struct {
	Metadata SongMetadata `msgpack:"metadata"`
}

type NetworkStatisticsRequest struct{}

type NetworkStatisticsEntry struct {
	URL           string `msgpack:"url"`
	BytesReceived int64  `msgpack:"bytes_received"`
}

type NetworkStatisticsResponse struct {
	Entries []NetworkStatisticsEntry `msgpack:"entries"`
}

// Message is the envelope exchanged with a worker process. Exactly one
// request variant is set at construction; the matching response variant is
// written exactly once when the worker answers. A message is never
// response-only.
type Message struct {
	App       string  `msgpack:"app"`
	ID        string  `msgpack:"id"`
	Timestamp float64 `msgpack:"timestamp"`

	ReadFileRequest          *ReadFileRequest          `msgpack:"read_file_request,omitempty"`
	SaveFileRequest          *SaveFileRequest          `msgpack:"save_file_request,omitempty"`
	SaveStatisticsRequest    *SaveStatisticsRequest    `msgpack:"save_statistics_request,omitempty"`
	SaveRatingRequest        *SaveRatingRequest        `msgpack:"save_rating_request,omitempty"`
	IsMediaFileRequest       *IsMediaFileRequest       `msgpack:"is_media_file_request,omitempty"`
	LoadEmbeddedArtRequest   *LoadEmbeddedArtRequest   `msgpack:"load_embedded_art_request,omitempty"`
	ReadCloudFileRequest     *ReadCloudFileRequest     `msgpack:"read_cloud_file_request,omitempty"`
	NetworkStatisticsRequest *NetworkStatisticsRequest `msgpack:"network_statistics_request,omitempty"`

	ReadFileResponse          *ReadFileResponse          `msgpack:"read_file_response,omitempty"`
	SaveFileResponse          *SaveFileResponse          `msgpack:"save_file_response,omitempty"`
	SaveStatisticsResponse    *SaveStatisticsResponse    `msgpack:"save_statistics_response,omitempty"`
	SaveRatingResponse        *SaveRatingResponse        `msgpack:"save_rating_response,omitempty"`
	IsMediaFileResponse       *IsMediaFileResponse       `msgpack:"is_media_file_response,omitempty"`
	LoadEmbeddedArtResponse   *LoadEmbeddedArtResponse   `msgpack:"load_embedded_art_response,omitempty"`
	ReadCloudFileResponse     *ReadCloudFileResponse     `msgpack:"read_cloud_file_response,omitempty"`
	NetworkStatisticsResponse *NetworkStatisticsResponse `msgpack:"network_statistics_response,omitempty"`
}

// NewMessage creates an empty envelope with defaults
func NewMessage() *Message {
	return &Message{
		App:       AppName,
		ID:        uuid.New().String(),
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
}

// NewReadFileMessage creates a read-file request envelope
func NewReadFileMessage(filename string) *Message {
	msg := NewMessage()
	msg.ReadFileRequest = &ReadFileRequest{Filename: filename}
	return msg
}

// NewSaveFileMessage creates a save-file request envelope
func NewSaveFileMessage(filename string, metadata SongMetadata) *Message {
	msg := NewMessage()
	msg.SaveFileRequest = &SaveFileRequest{Filename: filename, Metadata: metadata}
	return msg
}

// NewSaveStatisticsMessage creates a save-statistics request envelope
func NewSaveStatisticsMessage(filename string, metadata SongMetadata) *Message {
	msg := NewMessage()
	msg.SaveStatisticsRequest = &SaveStatisticsRequest{Filename: filename, Metadata: metadata}
	return msg
}

// NewSaveRatingMessage creates a save-rating request envelope
func NewSaveRatingMessage(filename string, metadata SongMetadata) *Message {
	msg := NewMessage()
	msg.SaveRatingRequest = &SaveRatingRequest{Filename: filename, Metadata: metadata}
	return msg
}

// NewIsMediaFileMessage creates an is-media-file request envelope
func NewIsMediaFileMessage(filename string) *Message {
	msg := NewMessage()
	msg.IsMediaFileRequest = &IsMediaFileRequest{Filename: filename}
	return msg
}

// NewLoadEmbeddedArtMessage creates a load-embedded-art request envelope
func NewLoadEmbeddedArtMessage(filename string) *Message {
	msg := NewMessage()
	msg.LoadEmbeddedArtRequest = &LoadEmbeddedArtRequest{Filename: filename}
	return msg
}

// NewReadCloudFileMessage creates a read-cloud-file request envelope
func NewReadCloudFileMessage(downloadURL, title string, size int64, mimeType, authorisationHeader string) *Message {
	msg := NewMessage()
	msg.ReadCloudFileRequest = &ReadCloudFileRequest{
		DownloadURL:         downloadURL,
		Title:               title,
		Size:                size,
		MimeType:            mimeType,
		AuthorisationHeader: authorisationHeader,
	}
	return msg
}

// NewNetworkStatisticsMessage creates a network-statistics request envelope
func NewNetworkStatisticsMessage() *Message {
	msg := NewMessage()
	msg.NetworkStatisticsRequest = &NetworkStatisticsRequest{}
	return msg
}

// RequestKind returns which request variant the envelope carries
func (m *Message) RequestKind() RequestKind {
	switch {
	case m.ReadFileRequest != nil:
		return KindReadFile
	case m.SaveFileRequest != nil:
		return KindSaveFile
	case m.SaveStatisticsRequest != nil:
		return KindSaveStatistics
	case m.SaveRatingRequest != nil:
		return KindSaveRating
	case m.IsMediaFileRequest != nil:
		return KindIsMediaFile
	case m.LoadEmbeddedArtRequest != nil:
		return KindLoadEmbeddedArt
	case m.ReadCloudFileRequest != nil:
		return KindReadCloudFile
	case m.NetworkStatisticsRequest != nil:
		return KindNetworkStatistics
	}
	return KindNone
}

// Answered reports whether any response variant has been written
func (m *Message) Answered() bool {
	return m.ReadFileResponse != nil ||
		m.SaveFileResponse != nil ||
		m.SaveStatisticsResponse != nil ||
		m.SaveRatingResponse != nil ||
		m.IsMediaFileResponse != nil ||
		m.LoadEmbeddedArtResponse != nil ||
		m.ReadCloudFileResponse != nil ||
		m.NetworkStatisticsResponse != nil
}

// adoptResponse copies the response variants from a worker's answer into
// this envelope. Request variants are left untouched.
func (m *Message) adoptResponse(answer *Message) {
	m.ReadFileResponse = answer.ReadFileResponse
	m.SaveFileResponse = answer.SaveFileResponse
	m.SaveStatisticsResponse = answer.SaveStatisticsResponse
	m.SaveRatingResponse = answer.SaveRatingResponse
	m.IsMediaFileResponse = answer.IsMediaFileResponse
	m.LoadEmbeddedArtResponse = answer.LoadEmbeddedArtResponse
	m.ReadCloudFileResponse = answer.ReadCloudFileResponse
	m.NetworkStatisticsResponse = answer.NetworkStatisticsResponse
}

// Pack serializes the envelope to msgpack
func (m *Message) Pack() ([]byte, error) {
	return msgpack.Marshal(m)
}

// Embedded art can be large, so the cap is generous. 64MB is still a hard
// stop against a corrupt length prefix.
const maxMessageSize = 64 * 1024 * 1024

// Unpack deserializes an envelope from msgpack with safety validations
func Unpack(data []byte) (*Message, error) {
	if len(data) > maxMessageSize {
		return nil, fmt.Errorf("message size %d exceeds limit %d", len(data), maxMessageSize)
	}

	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	if math.IsNaN(msg.Timestamp) || math.IsInf(msg.Timestamp, 0) {
		msg.Timestamp = 0.0
	}

	return &msg, nil
}

// RemoteCallError represents a request that the pool could not complete,
// such as the worker process exiting before answering.
type RemoteCallError struct {
	Message string
	Err     error
}

func (e *RemoteCallError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *RemoteCallError) Unwrap() error {
	return e.Err
}
