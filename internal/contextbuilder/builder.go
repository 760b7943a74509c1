// Package contextbuilder assembles the ordered blocks submitted to the model
// for a conversation.
package contextbuilder

import (
	"strings"

	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/menu"
	"github.com/foxseedlab/chumon/internal/model"
)

// Build returns the priming preamble followed by one block per message in
// insertion order. It only reads snap.
func Build(snap conversation.Snapshot, menuText string) []model.Block {
	if strings.TrimSpace(menuText) == "" {
		menuText = menu.Placeholder
	}
	blocks := make([]model.Block, 0, FixedBlockCount+len(snap.Messages))
	blocks = append(blocks,
		model.Block{Role: model.RoleUser, Text: PrimingPrompt},
		model.Block{Role: model.RoleModel, Text: MenuRequest},
		model.Block{Role: model.RoleUser, Text: menuText},
		model.Block{Role: model.RoleModel, Text: WelcomeText},
	)
	for _, m := range snap.Messages {
		blocks = append(blocks, model.Block{Role: RoleFor(m.Sender), Text: m.Text})
	}
	return blocks
}

func RoleFor(s conversation.Sender) model.Role {
	if s.IsModel() {
		return model.RoleModel
	}
	return model.RoleUser
}
