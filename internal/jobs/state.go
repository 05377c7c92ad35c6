/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


package jobs

import (
	"encoding/json"
	"fmt"
)

// State is a job's position in the synthesis pipeline.
type State string

const (
	StatePending      State = "PENDING"
	StateSynthesizing State = "SYNTHESIZING"
	StateMastering    State = "MASTERING"
	StateAligning     State = "ALIGNING"
	StateReady        State = "READY"
	StateFailed       State = "FAILED"
)

var transitions = map[State][]State{
	StatePending:      {StateSynthesizing, StateFailed},
	StateSynthesizing: {StateMastering, StateFailed},
	StateMastering:    {StateAligning, StateFailed},
	StateAligning:     {StateReady, StateFailed},
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool { return s == StateReady || s == StateFailed }

// CanTransition reports whether the pipeline may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func (s State) valid() bool {
	_, ok := transitions[s]
	return ok || s.IsTerminal()
}

func (s *State) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if !State(v).valid() {
		return fmt.Errorf("unknown job state %q", v)
	}
	*s = State(v)
	return nil
}
