package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLibraryXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Major Version</key><integer>1</integer>
	<key>Tracks</key>
	<dict>
		<key>1001</key>
		<dict>
			<key>Track ID</key><integer>1001</integer>
			<key>Name</key><string>First Song</string>
			<key>Artist</key><string>Somebody</string>
			<key>Location</key><string>file:///Users/dj/Music/First%20Song.mp3</string>
		</dict>
		<key>1002</key>
		<dict>
			<key>Track ID</key><integer>1002</integer>
			<key>Name</key><string>Second Song</string>
			<key>Location</key><string>file:///Users/dj/Music/second.mp3</string>
		</dict>
		<key>1003</key>
		<dict>
			<key>Track ID</key><integer>1003</integer>
			<key>Name</key><string>Streaming Only</string>
		</dict>
	</dict>
</dict>
</plist>`

func TestParseITunesLocations(t *testing.T) {
	locations, err := parseITunesLocations(strings.NewReader(sampleLibraryXML))
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "file:///Users/dj/Music/First%20Song.mp3", locations[0])
	assert.Equal(t, "file:///Users/dj/Music/second.mp3", locations[1])
}

func TestParseITunesLocationsInvalidXML(t *testing.T) {
	_, err := parseITunesLocations(strings.NewReader("<plist><dict></plist>"))
	assert.Error(t, err)
}

func TestLocationToPath(t *testing.T) {
	path, err := locationToPath("file:///Users/dj/Music/First%20Song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/Users/dj/Music/First Song.mp3", path)

	path, err = locationToPath("file://localhost/Users/dj/Music/second.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/Users/dj/Music/second.mp3", path)

	_, err = locationToPath("http://example.com/song.mp3")
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"track.mp3", "track.mp3"},
		{"my song.mp3", "my_song.mp3"},
		{"../../../etc/passwd", "passwd"},
		{"weird$chars!.mp3", "weirdchars.mp3"},
		{"", "untitled"},
		{"  .", "untitled"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, sanitizeFilename(tt.in), "input %q", tt.in)
	}
}
