package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Proposal struct {
	ID                string          `json:"id"`
	SwarmID           string          `json:"swarm_id"`
	ProposalType      string          `json:"proposal_type"`
	ProposalData      json.RawMessage `json:"proposal_data,omitempty"`
	ProposedBy        string          `json:"proposed_by"`
	ThresholdRequired float64         `json:"threshold_required"`
	VotesFor          int64           `json:"votes_for"`
	VotesAgainst      int64           `json:"votes_against"`
	VotesTotal        int64           `json:"votes_total"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty"`
	TimeoutAt         *time.Time      `json:"timeout_at,omitempty"`
}

const proposalColumns = `id, swarm_id, proposal_type, proposal_data, proposed_by, threshold_required, votes_for, votes_against, votes_total, status, created_at, resolved_at, timeout_at`

func scanProposal(scanner interface {
	Scan(dest ...any) error
}) (*Proposal, error) {
	p := &Proposal{}
	var data *string
	err := scanner.Scan(&p.ID, &p.SwarmID, &p.ProposalType, &data, &p.ProposedBy,
		&p.ThresholdRequired, &p.VotesFor, &p.VotesAgainst, &p.VotesTotal,
		&p.Status, &p.CreatedAt, &p.ResolvedAt, &p.TimeoutAt)
	if err != nil {
		return nil, err
	}
	if data != nil {
		p.ProposalData = json.RawMessage(*data)
	}
	return p, nil
}

func (s *Store) CreateProposal(p *Proposal) error {
	if p.ThresholdRequired < 0 || p.ThresholdRequired > 1 {
		return fmt.Errorf("create proposal: threshold %v out of range [0,1]", p.ThresholdRequired)
	}
	var data any
	if len(p.ProposalData) > 0 {
		data = string(p.ProposalData)
	}
	_, err := s.exec("create proposal", `
		INSERT INTO consensus (id, swarm_id, proposal_type, proposal_data, proposed_by, threshold_required, timeout_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SwarmID, p.ProposalType, data, p.ProposedBy, p.ThresholdRequired, p.TimeoutAt)
	return err
}

func (s *Store) GetProposal(id string) (*Proposal, error) {
	row, err := s.queryRow("get proposal", `SELECT `+proposalColumns+` FROM consensus WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// SubmitVote adds one vote to a pending proposal: votes_total always moves
// together with votes_for/votes_against, and when the for-ratio crosses
// threshold_required the proposal flips to achieved in the same
// transaction. Votes against a resolved proposal return
// ErrProposalResolved. The updated row is returned so callers see the
// totals their vote produced.
//
// The ratio is checked after every ballot, so a proposal whose first vote
// is in favor resolves immediately at 1/1 regardless of threshold.
// Proposals that must wait for a wider electorate belong to
// ResolveProposal or a timeout_at deadline instead.
func (s *Store) SubmitVote(id string, inFavor bool) (*Proposal, error) {
	var p *Proposal
	err := s.withTx("submit vote", func(tx *sql.Tx) error {
		forDelta, againstDelta := 0, 0
		if inFavor {
			forDelta = 1
		} else {
			againstDelta = 1
		}
		res, err := tx.Exec(`
			UPDATE consensus
			SET votes_for = votes_for + ?, votes_against = votes_against + ?, votes_total = votes_total + 1
			WHERE id = ? AND status = 'pending'`, forDelta, againstDelta, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			row := tx.QueryRow(`SELECT COUNT(*) FROM consensus WHERE id = ?`, id)
			var exists int
			if err := row.Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("proposal %s not found", id)
			}
			return ErrProposalResolved
		}

		// Quorum check on the fresh totals.
		if _, err := tx.Exec(`
			UPDATE consensus
			SET status = 'achieved', resolved_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = 'pending'
			  AND votes_total > 0
			  AND CAST(votes_for AS REAL) / votes_total >= threshold_required`, id); err != nil {
			return err
		}

		row := tx.QueryRow(`SELECT `+proposalColumns+` FROM consensus WHERE id = ?`, id)
		p, err = scanProposal(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ResolveProposal moves a pending proposal to a terminal status and stamps
// resolved_at. Already-terminal proposals are rejected, never silently
// rewritten.
func (s *Store) ResolveProposal(id, status string) error {
	if !TerminalProposalStatus(status) {
		return fmt.Errorf("resolve proposal: %q is not a terminal status", status)
	}
	res, err := s.exec("resolve proposal", `
		UPDATE consensus
		SET status = ?, resolved_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve proposal: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("resolve proposal: %w", ErrProposalResolved)
	}
	return nil
}

// ExpireProposals times out pending proposals whose timeout_at has passed.
// Returns the ids it expired; the guarded transition means it can never
// race a concurrent vote into a double resolution.
func (s *Store) ExpireProposals(now time.Time) ([]string, error) {
	rows, err := s.query("expire proposals candidates", `
		SELECT id FROM consensus
		WHERE status = 'pending' AND timeout_at IS NOT NULL AND timeout_at <= ?`, now.UTC())
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("expire proposals: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("expire proposals: %w", err)
	}
	rows.Close()

	var expired []string
	for _, id := range ids {
		res, err := s.exec("expire proposal", `
			UPDATE consensus SET status = 'timeout', resolved_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = 'pending'`, id)
		if err != nil {
			return expired, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

// RecentProposals lists a swarm's proposals, newest first.
func (s *Store) RecentProposals(swarmID string, limit int) ([]Proposal, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.query("recent proposals", `
		SELECT `+proposalColumns+` FROM consensus
		WHERE swarm_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, swarmID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proposals []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}
