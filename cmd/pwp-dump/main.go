// Decodes a captured peer wire stream and prints its messages.
package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/alexflint/go-arg"
	"github.com/anacrolix/envpprof"
	"github.com/anacrolix/log"
	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	pp "github.com/anacrolix/peerwire/peer_protocol"
)

func main() {
	defer envpprof.Stop()
	err := mainErr()
	if err != nil {
		log.Printf("error in main: %v", err)
		os.Exit(1)
	}
}

type dumpArgs struct {
	Path      string `arg:"positional" help:"captured stream, stdin if omitted"`
	Handshake bool   `help:"the stream starts with a handshake"`
	MaxLength uint32 `default:"262144" help:"largest message length accepted"`
	Summary   bool   `help:"print totals by message type at the end"`
	Fields    bool   `help:"dump every field of each message"`
}

func mainErr() error {
	var args dumpArgs
	arg.MustParse(&args)
	var r io.Reader = os.Stdin
	if args.Path != "" {
		f, err := os.Open(args.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return dump(r, os.Stdout, args)
}

// Message implements Stringer, which would hide the fields.
var fieldDumper = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
}

func dump(r io.Reader, w io.Writer, args dumpArgs) error {
	if args.Handshake {
		b := make([]byte, pp.HandshakeLength)
		if _, err := io.ReadFull(r, b); err != nil {
			return errors.Wrap(err, "reading handshake")
		}
		var res pp.HandshakeResult
		if err := res.UnmarshalBinary(b); err != nil {
			return errors.Wrap(err, "decoding handshake")
		}
		fmt.Fprintf(w, "handshake: infohash %v, peer id %+q, extensions %v\n", res.Hash, res.PeerID, res.PeerExtensionBits)
	}
	d := pp.NewDecoder(r, pp.Integer(args.MaxLength))
	counts := make(map[string]int)
	var pieceBytes uint64
	for i := 0; ; i++ {
		var msg pp.Message
		err := d.Decode(&msg)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "decoding message %d", i)
		}
		fmt.Fprintf(w, "%d: %v\n", i, msg)
		if args.Fields {
			fieldDumper.Fdump(w, msg)
		}
		if msg.Keepalive {
			counts["Keepalive"]++
		} else {
			counts[msg.Type.String()]++
		}
		pieceBytes += uint64(len(msg.Piece))
	}
	if !args.Summary {
		return nil
	}
	types := make([]string, 0, len(counts))
	for k := range counts {
		types = append(types, k)
	}
	slices.Sort(types)
	for _, k := range types {
		fmt.Fprintf(w, "%s: %d\n", k, counts[k])
	}
	fmt.Fprintf(w, "piece data: %s\n", humanize.IBytes(pieceBytes))
	return nil
}
