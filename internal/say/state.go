package say

import (
	"sync"

	"github.com/iabetor/kitten-say/internal/logger"
)

// State 是一次朗读所处的阶段。
type State int

const (
	StateIdle         State = iota // 没有正在处理的文本
	StateReading                   // 交互模式下已打印 "> "，等待下一行
	StateSynthesizing              // 文本已交给模型
	StateSpeaking                  // 音频正在播放或写入 -o 指定的文件
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateReading:
		return "Reading"
	case StateSynthesizing:
		return "Synthesizing"
	case StateSpeaking:
		return "Speaking"
	}
	return "Unknown"
}

// nextStates 列出除回到 Idle 之外的合法后继。
// 单次调用从 Idle 直接进入合成，交互模式每行先经过 Reading。
var nextStates = map[State][]State{
	StateIdle:         {StateReading, StateSynthesizing},
	StateReading:      {StateSynthesizing},
	StateSynthesizing: {StateSpeaking},
}

// StateMachine 记录编排器当前阶段，中断时据此判断打断的是读取、合成还是播放。
type StateMachine struct {
	mu       sync.RWMutex
	current  State
	onChange func(from, to State)
}

// NewStateMachine 返回处于 Idle 的状态机。
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateIdle}
}

// SetOnChange 注册阶段变化回调，回调在持锁状态下执行，不能再调用状态机。
func (sm *StateMachine) SetOnChange(fn func(from, to State)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 进入 to 阶段，不在 nextStates 中的转换被拒绝并返回 false。
// 任何阶段都可以回到 Idle。
func (sm *StateMachine) Transition(to State) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !canMove(sm.current, to) {
		logger.Warnf("[state] 拒绝 %s → %s", sm.current, to)
		return false
	}
	sm.setLocked(to)
	return true
}

// ForceIdle 结束当前朗读，返回结束前所处的阶段。
func (sm *StateMachine) ForceIdle() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from := sm.current
	if from != StateIdle {
		sm.setLocked(StateIdle)
	}
	return from
}

func (sm *StateMachine) setLocked(to State) {
	from := sm.current
	sm.current = to
	logger.Debugf("[state] %s → %s", from, to)
	if sm.onChange != nil {
		sm.onChange(from, to)
	}
}

func canMove(from, to State) bool {
	if to == StateIdle {
		return true
	}
	for _, s := range nextStates[from] {
		if s == to {
			return true
		}
	}
	return false
}
