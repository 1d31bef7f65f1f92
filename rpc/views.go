package rpc

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/poexist/poe/claim"
)

// Info describes the state of a registry.
type Info struct {
	Claims  int
	Digest  []byte
	Version string
}

func claimView(key claim.Key, c claim.Claim) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"key":   key.String(),
		"cid":   key.CID().String(),
		"owner": string(c.Owner),
		// decimal string as struct numbers are doubles
		"registered_at": strconv.FormatUint(c.RegisteredAt, 10),
	})
}

func claimFromView(view *structpb.Struct) (claim.Key, claim.Claim, error) {
	fields := view.GetFields()
	key, err := claim.ParseKey(fields["key"].GetStringValue())
	if err != nil {
		return claim.Key{}, claim.Claim{}, err
	}
	at, err := strconv.ParseUint(fields["registered_at"].GetStringValue(), 10, 64)
	if err != nil {
		return claim.Key{}, claim.Claim{}, fmt.Errorf("parsing registered_at: %w", err)
	}
	return key, claim.Claim{
		Owner:        claim.Identity(fields["owner"].GetStringValue()),
		RegisteredAt: at,
	}, nil
}

func eventView(ev claim.Event) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"kind": ev.Kind.String(),
		"who":  string(ev.Who),
		"key":  ev.Claim.String(),
	})
}

func eventFromView(view *structpb.Struct) (claim.Event, error) {
	fields := view.GetFields()
	key, err := claim.ParseKey(fields["key"].GetStringValue())
	if err != nil {
		return claim.Event{}, err
	}
	ev := claim.Event{Who: claim.Identity(fields["who"].GetStringValue()), Claim: key}
	switch kind := fields["kind"].GetStringValue(); kind {
	case claim.ClaimCreated.String():
		ev.Kind = claim.ClaimCreated
	case claim.ClaimRevoked.String():
		ev.Kind = claim.ClaimRevoked
	default:
		return claim.Event{}, fmt.Errorf("unknown event kind %q", kind)
	}
	return ev, nil
}

func infoView(info Info) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"claims":  info.Claims,
		"digest":  hex.EncodeToString(info.Digest),
		"version": info.Version,
	})
}

func infoFromView(view *structpb.Struct) (Info, error) {
	fields := view.GetFields()
	digest, err := hex.DecodeString(fields["digest"].GetStringValue())
	if err != nil {
		return Info{}, fmt.Errorf("parsing digest: %w", err)
	}
	return Info{
		Claims:  int(fields["claims"].GetNumberValue()),
		Digest:  digest,
		Version: fields["version"].GetStringValue(),
	}, nil
}
