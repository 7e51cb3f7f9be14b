package backend

const sampleHCL = `
interface "lan" {
  device  = "eth1"
  address = "192.168.1.1"
}

interface "wan" {
  device  = "eth0"
  dynamic = true
}

interface "old" {
  device   = "eth9"
  disabled = true
}

zone "lan" {
  network "office" {
    network    = "192.168.1.0/24"
    interfaces = ["lan"]

    host "printer" {
      address = "192.168.1.20"
    }

    host "retired" {
      address  = "192.168.1.99"
      disabled = true
    }
  }
}

zone "dmz" {
  network "servers" {
    network    = "10.0.5.0/28"
    interfaces = ["dmz"]
  }
}

service "http" {
  tcp = ["80"]
}

service "x11" {
  tcp = ["6000:6010"]
}

service "ping" {
  icmp = ["8", "0"]
}

service "gre" {
  protocols = [47]
}
`

const sampleYAML = `
interfaces:
  - name: lan
    device: eth1
    address: 192.168.1.1
zones:
  - name: lan
    networks:
      - name: office
        network: 192.168.1.0/24
        interfaces: [lan]
        hosts:
          - name: printer
            address: 192.168.1.20
services:
  - name: http
    tcp: ["80"]
`

const sampleJSON = `{
  "interfaces": [{"name": "lan", "device": "eth1", "address": "192.168.1.1"}],
  "zones": [{"name": "lan", "networks": [{"name": "office", "network": "192.168.1.0/24",
    "hosts": [{"name": "printer", "address": "192.168.1.20"}]}]}],
  "services": [{"name": "http", "tcp": ["80"]}]
}`
