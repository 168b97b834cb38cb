package ipc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sergeivaskov/punto/internal/corrector"
	"github.com/sergeivaskov/punto/internal/dictionary"
	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
	"github.com/sergeivaskov/punto/internal/userdict"
)

// DaemonHandler routes IPC commands to the running daemon.
type DaemonHandler struct {
	version   string
	startedAt time.Time

	corrector *corrector.Corrector
	dict      *dictionary.Index
	userdict  *userdict.Store

	// reload re-reads the word lists from disk and re-merges the personal
	// dictionary.
	reload func() error
	// shutdown asks the daemon to exit.
	shutdown func()

	log *logging.Logger
}

// NewDaemonHandler wires the command surface. reload and shutdown may be
// nil, disabling the corresponding commands.
func NewDaemonHandler(version string, c *corrector.Corrector, ix *dictionary.Index, ud *userdict.Store, reload func() error, shutdown func(), log *logging.Logger) *DaemonHandler {
	return &DaemonHandler{
		version:   version,
		startedAt: time.Now(),
		corrector: c,
		dict:      ix,
		userdict:  ud,
		reload:    reload,
		shutdown:  shutdown,
		log:       log,
	}
}

// HandleMessage dispatches one request.
func (h *DaemonHandler) HandleMessage(_ context.Context, msg *Message) (*Message, error) {
	id := msg.Header.RequestID
	switch msg.Header.Type {
	case MsgStatusRequest:
		return NewResponse(MsgStatusResponse, id, &StatusResponse{
			Version:   h.version,
			StartedAt: h.startedAt,
			Uptime:    time.Since(h.startedAt),
			Stats:     h.corrector.Stats(),
		})

	case MsgPause:
		h.corrector.Pause()
		return NewResponse(MsgPauseResp, id, &AckResponse{Success: true})

	case MsgResume:
		h.corrector.Resume()
		return NewResponse(MsgResumeResp, id, &AckResponse{Success: true})

	case MsgConvertSelection:
		err := h.corrector.ConvertSelection()
		if errors.Is(err, corrector.ErrNothingSelected) {
			return NewResponse(MsgConvertSelectionResp, id, &AckResponse{Error: "no text selected"})
		}
		return h.ack(MsgConvertSelectionResp, id, err)

	case MsgDictAdd:
		return h.dictWord(id, msg, MsgDictAddResp, h.addWord)

	case MsgDictRemove:
		return h.dictWord(id, msg, MsgDictRemoveResp, h.userdict.RemoveWord)

	case MsgDictList:
		entries, err := h.userdict.Words()
		if err != nil {
			return NewErrorMessage(id, ErrInternalError, err.Error()), nil
		}
		resp := &DictListResponse{Entries: make([]DictEntry, 0, len(entries))}
		for _, e := range entries {
			resp.Entries = append(resp.Entries, DictEntry{Word: e.Word, Language: e.Language.String()})
		}
		return NewResponse(MsgDictListResp, id, resp)

	case MsgDictReload:
		if h.reload == nil {
			return NewErrorMessage(id, ErrInvalidRequest, "reload not supported"), nil
		}
		return h.ack(MsgDictReloadResp, id, h.reload())

	case MsgExclude:
		return h.excludeToken(id, msg, MsgExcludeResp, h.userdict.Exclude)

	case MsgUnexclude:
		return h.excludeToken(id, msg, MsgUnexcludeResp, h.userdict.Unexclude)

	case MsgExclusions:
		return NewResponse(MsgExclusionsResp, id, &ExclusionsResponse{
			Tokens: h.userdict.Exclusions(),
		})

	case MsgShutdown:
		if h.shutdown == nil {
			return NewErrorMessage(id, ErrInvalidRequest, "shutdown not supported"), nil
		}
		h.log.Info("shutdown requested over ipc")
		h.shutdown()
		return NewResponse(MsgShutdown, id, &AckResponse{Success: true})

	default:
		return NewErrorMessage(id, ErrInvalidRequest, fmt.Sprintf("unknown message type: 0x%04x", uint16(msg.Header.Type))), nil
	}
}

// addWord stores the word and also feeds it to the live index, so the new
// word takes effect without a reload.
func (h *DaemonHandler) addWord(word string, lang layout.Layout) error {
	if err := h.userdict.AddWord(word, lang); err != nil {
		return err
	}
	h.dict.AddWord(word, lang)
	return nil
}

func (h *DaemonHandler) dictWord(id uint32, msg *Message, respType MessageType, op func(string, layout.Layout) error) (*Message, error) {
	var req DictWordRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(id, ErrInvalidRequest, "invalid request payload"), nil
	}
	lang, err := layout.ParseLayout(req.Language)
	if err != nil {
		return NewErrorMessage(id, ErrInvalidRequest, err.Error()), nil
	}
	return h.ack(respType, id, op(req.Word, lang))
}

func (h *DaemonHandler) excludeToken(id uint32, msg *Message, respType MessageType, op func(string) error) (*Message, error) {
	var req ExcludeRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(id, ErrInvalidRequest, "invalid request payload"), nil
	}
	return h.ack(respType, id, op(req.Token))
}

func (h *DaemonHandler) ack(respType MessageType, id uint32, err error) (*Message, error) {
	if err != nil {
		return NewResponse(respType, id, &AckResponse{Error: err.Error()})
	}
	return NewResponse(respType, id, &AckResponse{Success: true})
}
