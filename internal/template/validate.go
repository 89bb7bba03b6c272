package template

import "fmt"

// Validate checks internal reference consistency: stage successors and
// branch targets resolve, dialogue entry nodes exist, and pattern members
// carry positive radii. Loaders call this once after construction.
func (t *Template) Validate() error {
	if t.CampaignRef == "" {
		return fmt.Errorf("campaign ref is required")
	}

	for ref, quest := range t.Quests {
		if len(quest.Stages) == 0 {
			return fmt.Errorf("quest %s: at least one stage is required", ref)
		}
		for _, stage := range quest.Stages {
			if stage.Next != "" {
				if _, ok := quest.Stage(stage.Next); !ok {
					return fmt.Errorf("quest %s: stage %s: next stage %q does not resolve", ref, stage.Ref, stage.Next)
				}
			}
			for _, branch := range stage.Branches {
				if branch.Next == "" {
					continue
				}
				if _, ok := quest.Stage(branch.Next); !ok {
					return fmt.Errorf("quest %s: stage %s: branch %s: next stage %q does not resolve", ref, stage.Ref, branch.Ref, branch.Next)
				}
			}
		}
	}

	for ref, dialogue := range t.Dialogues {
		if dialogue.EntryNode == "" {
			continue
		}
		if _, ok := dialogue.Nodes[dialogue.EntryNode]; !ok {
			return fmt.Errorf("dialogue %s: entry node %q does not resolve", ref, dialogue.EntryNode)
		}
	}

	for ref, pattern := range t.Patterns {
		for _, member := range pattern.Members {
			if member.Radius <= 0 {
				return fmt.Errorf("pattern %s: trigger %s: radius must be positive", ref, member.Ref)
			}
		}
	}

	return nil
}
