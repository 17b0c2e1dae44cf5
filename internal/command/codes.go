package command

import "path/filepath"

// CurlCodes maps curl exit codes to their descriptions
var CurlCodes = map[int]string{
	1:  "Unsupported protocol",
	2:  "Failed to initialize",
	3:  "URL malformed",
	5:  "Couldn't resolve proxy",
	6:  "Couldn't resolve host",
	7:  "Failed to connect to host",
	18: "Partial file, transfer shorter or larger than expected",
	22: "HTTP page not retrieved, server returned an error status",
	23: "Write error",
	26: "Read error",
	27: "Out of memory",
	28: "Operation timeout",
	35: "SSL connect error",
	47: "Too many redirects",
	52: "Server returned nothing",
	56: "Failure in receiving network data",
	60: "Peer certificate cannot be authenticated with known CA certificates",
}

// TarCodes maps tar exit codes to their descriptions
var TarCodes = map[int]string{
	1: "Some files differ or could not be read",
	2: "Fatal error",
}

// IsSuccess returns true if the exit code indicates success
func IsSuccess(code int) bool {
	return code == 0
}

// Describe returns a description of a tool's exit code, or a generic message if unknown
func Describe(tool string, code int) string {
	var table map[int]string

	switch filepath.Base(tool) {
	case "curl", "curl.exe":
		table = CurlCodes
	case "tar", "tar.exe", "bsdtar", "gtar":
		table = TarCodes
	}

	if msg, ok := table[code]; ok {
		return msg
	}

	return "Unknown error"
}
