package reactive

import (
	"testing"

	"github.com/bartossh/Federation/federation"
	"github.com/stretchr/testify/assert"
)

func TestReactiveCycleNonBlocking(t *testing.T) {
	obs := New[int](2)
	sub := obs.Subscribe()
	defer sub.Cancel()
	obs.Publish(1)
	v := <-sub.Channel()
	assert.Equal(t, 1, v)
}

func TestReactiveCycleNonBlockingMultipleSubscribers(t *testing.T) {
	obs := New[int](2)
	sub1 := obs.Subscribe()
	defer sub1.Cancel()
	sub2 := obs.Subscribe()
	defer sub2.Cancel()
	obs.Publish(1)
	obs.Publish(2)
	v := <-sub1.Channel()
	assert.Equal(t, 1, v)
	v = <-sub2.Channel()
	assert.Equal(t, 1, v)
	v = <-sub1.Channel()
	assert.Equal(t, 2, v)
	v = <-sub2.Channel()
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, obs.Subscribers())
}

func TestReactiveCycleNonBlockingMultipleSubscribersCancel(t *testing.T) {
	obs := New[int](2)
	sub1 := obs.Subscribe()
	sub2 := obs.Subscribe()
	sub1.Cancel()
	obs.Publish(1)
	obs.Publish(2)
	v := <-sub2.Channel()
	assert.Equal(t, 1, v)
	v = <-sub2.Channel()
	assert.Equal(t, 2, v)

	_, ok := <-sub1.Channel()
	assert.False(t, ok)
	assert.Equal(t, 1, obs.Subscribers())
}

func TestReactiveFullBufferDropsValue(t *testing.T) {
	obs := New[int](1)
	slow := obs.Subscribe()
	defer slow.Cancel()
	fast := obs.Subscribe()
	defer fast.Cancel()

	obs.Publish(1)
	assert.Equal(t, 1, <-fast.Channel())
	obs.Publish(2)
	assert.Equal(t, 2, <-fast.Channel())

	assert.Equal(t, 1, <-slow.Channel())
	assert.Equal(t, uint64(1), obs.Dropped())
}

func TestReactivePublishesFederationEvents(t *testing.T) {
	obs := New[federation.Event](10)
	var pub federation.Publisher = obs
	sub := obs.Subscribe()
	defer sub.Cancel()

	pub.Publish(federation.Event{Kind: federation.EventMemberAdded, Member: "A"})
	ev := <-sub.Channel()
	assert.Equal(t, federation.EventMemberAdded, ev.Kind)
	assert.Equal(t, federation.Identity("A"), ev.Member)
}

func FuzzTestDataIntegrity(f *testing.F) {
	obs := New[string](100)

	sub1 := obs.Subscribe()
	c1 := sub1.Channel()
	defer sub1.Cancel()
	sub2 := obs.Subscribe()
	c2 := sub2.Channel()
	defer sub2.Cancel()

	for _, v := range []string{"a", "b", "c", "1", "12a", "p45", "qwerty"} {
		f.Add(v)
	}

	f.Fuzz(func(t *testing.T, a string) {
		obs.Publish(a)
		v := <-c1
		assert.Equal(t, a, v)
		v = <-c2
		assert.Equal(t, a, v)
	})
}
