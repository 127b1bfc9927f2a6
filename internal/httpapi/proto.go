package httpapi

import (
	"io"
	"net/http"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads. A card event is a few dozen bytes either way.
const maxRequestBody = 4096

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload. Network readers send "application/x-protobuf".
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "application/x-protobuf" ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

// readProto reads the request body and unmarshals it into msg.
func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return proto.Unmarshal(body, msg)
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// cardIDFromProto reads a google.protobuf.StringValue carrying the card ID.
func cardIDFromProto(r *http.Request) (string, error) {
	var v wrapperspb.StringValue
	if err := readProto(r, &v); err != nil {
		return "", err
	}
	return v.GetValue(), nil
}

func cardEventResponseToProto(resp types.CardEventResponse) (*structpb.Struct, error) {
	fields := map[string]any{
		"ok":          resp.OK,
		"known":       resp.Known,
		"outcome":     resp.Outcome,
		"card_id":     resp.CardID,
		"server_time": resp.ServerTime,
	}
	if resp.Known {
		fields["user_id"] = resp.UserID
		fields["display_name"] = resp.DisplayName
		fields["direction"] = resp.Direction
		fields["event_id"] = resp.EventID
		fields["timestamp"] = resp.Timestamp
	}
	return structpb.NewStruct(fields)
}
