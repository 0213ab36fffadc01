/*
 * openvswitch - an OpenFlow software switch core
 *
 * Copyright (C) 2015 The openvswitch authors. All rights reserved.
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package ofproto

import (
	"testing"

	"github.com/yamahata/openvswitch/netdev/memory"
	"github.com/yamahata/openvswitch/openflow"
)

func portStatuses(msgs []openflow.Message) []*openflow.PortStatus {
	var out []*openflow.PortStatus
	for _, m := range msgs {
		if ps, ok := m.(*openflow.PortStatus); ok {
			out = append(out, ps)
		}
	}

	return out
}

func TestPortAddAndStatus(t *testing.T) {
	fp := newFakeProvider()
	sw, devices := newTestSwitch(t, fp)
	c := sw.connmgr.Accept(true)

	devices.Create(memory.DeviceConfig{Name: "eth0", HWAddr: []byte{0, 1, 2, 3, 4, 5}})
	number, err := sw.PortAdd("eth0", "system")
	if err != nil {
		t.Fatalf("failed to add the port: %v", err)
	}

	port := sw.Port(number)
	if port == nil {
		t.Fatal("expected the port in the registry")
	}
	if port.Name() != "eth0" {
		t.Fatalf("expected name eth0, got=%v", port.Name())
	}
	if sw.PortByName("eth0") != port {
		t.Fatal("expected the by-name index to agree")
	}

	statuses := portStatuses(c.TakeReplies())
	if len(statuses) != 1 || statuses[0].Reason != openflow.OFPPR_ADD {
		t.Fatalf("expected one ADD status, got=%+v", statuses)
	}
}

func TestPortDelAndStatus(t *testing.T) {
	fp := newFakeProvider()
	sw, devices := newTestSwitch(t, fp)
	c := sw.connmgr.Accept(true)

	devices.Create(memory.DeviceConfig{Name: "eth0"})
	number, err := sw.PortAdd("eth0", "system")
	if err != nil {
		t.Fatalf("failed to add the port: %v", err)
	}
	c.TakeReplies()

	if err := sw.PortDel(number); err != nil {
		t.Fatalf("failed to delete the port: %v", err)
	}
	if sw.Port(number) != nil || sw.PortByName("eth0") != nil {
		t.Fatal("expected the port out of the registry")
	}

	statuses := portStatuses(c.TakeReplies())
	if len(statuses) != 1 || statuses[0].Reason != openflow.OFPPR_DELETE {
		t.Fatalf("expected one DELETE status, got=%+v", statuses)
	}
}

func TestPortCarrierChange(t *testing.T) {
	fp := newFakeProvider()
	sw, devices := newTestSwitch(t, fp)
	c := sw.connmgr.Accept(true)

	devices.Create(memory.DeviceConfig{Name: "eth0"})
	number, err := sw.PortAdd("eth0", "system")
	if err != nil {
		t.Fatalf("failed to add the port: %v", err)
	}
	c.TakeReplies()

	devices.SetCarrier("eth0", false)
	if err := sw.Run(); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	desc := sw.Port(number).Desc()
	if !desc.IsLinkDown() {
		t.Fatal("expected the link down after losing carrier")
	}
	statuses := portStatuses(c.TakeReplies())
	if len(statuses) != 1 || statuses[0].Reason != openflow.OFPPR_MODIFY {
		t.Fatalf("expected one MODIFY status, got=%+v", statuses)
	}
	// The port identity must not have changed.
	if statuses[0].Desc.PortNo != number {
		t.Fatalf("expected port %v, got=%v", number, statuses[0].Desc.PortNo)
	}
}

func TestPortDeviceDisappears(t *testing.T) {
	fp := newFakeProvider()
	sw, devices := newTestSwitch(t, fp)
	c := sw.connmgr.Accept(true)

	devices.Create(memory.DeviceConfig{Name: "eth0"})
	number, err := sw.PortAdd("eth0", "system")
	if err != nil {
		t.Fatalf("failed to add the port: %v", err)
	}
	c.TakeReplies()

	// The device vanishes but the datapath still lists the port: the
	// port must be destroyed anyway.
	devices.Destroy("eth0")
	if err := sw.Run(); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if sw.Port(number) != nil {
		t.Fatal("expected the port gone with its device")
	}
	statuses := portStatuses(c.TakeReplies())
	if len(statuses) != 1 || statuses[0].Reason != openflow.OFPPR_DELETE {
		t.Fatalf("expected one DELETE status, got=%+v", statuses)
	}
}

func TestPortRenumberIsDeleteThenAdd(t *testing.T) {
	fp := newFakeProvider()
	sw, devices := newTestSwitch(t, fp)
	c := sw.connmgr.Accept(true)

	devices.Create(memory.DeviceConfig{Name: "eth0"})
	number, err := sw.PortAdd("eth0", "system")
	if err != nil {
		t.Fatalf("failed to add the port: %v", err)
	}
	c.TakeReplies()

	// The datapath renumbers the port behind our back.
	rec := fp.ports[number]
	delete(fp.ports, number)
	rec.Number = number + 7
	fp.ports[rec.Number] = rec
	fp.changes = append(fp.changes, "eth0")

	if err := sw.Run(); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if sw.Port(number) != nil {
		t.Fatal("expected the old number gone")
	}
	if sw.Port(number+7) == nil {
		t.Fatal("expected the new number present")
	}

	statuses := portStatuses(c.TakeReplies())
	if len(statuses) != 2 {
		t.Fatalf("expected DELETE then ADD, got=%+v", statuses)
	}
	if statuses[0].Reason != openflow.OFPPR_DELETE || statuses[1].Reason != openflow.OFPPR_ADD {
		t.Fatalf("expected DELETE then ADD, got reasons %v, %v", statuses[0].Reason, statuses[1].Reason)
	}
}

func TestBulkRescanAfterOverflow(t *testing.T) {
	fp := newFakeProvider()
	sw, devices := newTestSwitch(t, fp)

	devices.Create(memory.DeviceConfig{Name: "eth0"})
	devices.Create(memory.DeviceConfig{Name: "eth1"})
	if _, err := sw.PortAdd("eth0", "system"); err != nil {
		t.Fatalf("failed to add eth0: %v", err)
	}
	if _, err := sw.PortAdd("eth1", "system"); err != nil {
		t.Fatalf("failed to add eth1: %v", err)
	}

	// The device feed loses track of individual changes while eth1
	// silently disappears from the datapath.
	for number, rec := range fp.ports {
		if rec.Name == "eth1" {
			delete(fp.ports, number)
		}
	}
	devices.InvalidateAll()

	if err := sw.Run(); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if sw.PortByName("eth0") == nil {
		t.Fatal("expected eth0 to survive the rescan")
	}
	if sw.PortByName("eth1") != nil {
		t.Fatal("expected eth1 gone after the rescan")
	}
}
